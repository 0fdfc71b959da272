// Package writer implements the Batch Writer (C3): a long-running task
// that drains a bounded write queue, groups samples into batches by size
// or timeout, and commits each batch as one transaction against the
// persistent store.
package writer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/ablate-ai/iris/internal/logging"
	"github.com/ablate-ai/iris/internal/metrics"
	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/internal/util"
	spanlink "github.com/ablate-ai/iris/pkg/otel"
)

var tracer = otel.Tracer("iris/writer")

// Flusher is the subset of *store.Store the writer depends on, so tests can
// substitute a fake that exercises retry/failure paths.
type Flusher interface {
	FlushBatch(ctx context.Context, samples []model.Sample) error
}

// Request is one unit of work enqueued by the ingest façade. Ack is nil for
// save_async callers (fire-and-forget); save_sync callers supply a
// buffered, capacity-1 channel and block on it.
type Request struct {
	Sample model.Sample
	Ack    chan error
}

// Config parameterizes the writer. Zero values are replaced by the
// defaults from spec.md §6.
type Config struct {
	BatchSize      int
	BatchTimeout   time.Duration
	ChannelCap     int
	MaxRetries     int // bounded retry count before a batch is dead-lettered (SPEC_FULL §Open Question resolutions)
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		BatchTimeout: 5 * time.Second,
		ChannelCap:   1000,
		MaxRetries:   5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = d.BatchTimeout
	}
	if c.ChannelCap <= 0 {
		c.ChannelCap = d.ChannelCap
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	return c
}

// Writer owns the request channel and the background commit loop.
type Writer struct {
	cfg     Config
	flusher Flusher
	reqs    chan Request
	done    chan struct{}
}

// New constructs a Writer and starts its background loop. Callers must call
// Close, which closes the request channel, to drain pending work on
// shutdown.
func New(flusher Flusher, cfg Config) *Writer {
	cfg = cfg.withDefaults()
	w := &Writer{
		cfg:     cfg,
		flusher: flusher,
		reqs:    make(chan Request, cfg.ChannelCap),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// TrySend attempts a non-blocking enqueue for save_async. It reports
// whether the request was accepted; callers log-and-drop on false
// (spec.md §7 Backpressure).
func (w *Writer) TrySend(req Request) bool {
	select {
	case w.reqs <- req:
		return true
	default:
		return false
	}
}

// Send blocks until there is room in the channel or ctx is done, for
// save_sync callers that must never silently drop a sample (spec.md §7
// Backpressure: "save_sync awaits (never drops)").
func (w *Writer) Send(ctx context.Context, req Request) error {
	select {
	case w.reqs <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the request channel, signaling end-of-stream to the
// background loop, and blocks until it finishes draining and exits.
func (w *Writer) Close() {
	close(w.reqs)
	<-w.done
}

// run is the commit loop described in spec.md §4.3.
func (w *Writer) run() {
	defer close(w.done)
	log := logging.Sugar()

	buffer := make([]model.Sample, 0, w.cfg.BatchSize)
	acks := make([]chan error, 0, w.cfg.BatchSize)
	retries := 0

	// retryBackoff spaces out repeated FlushBatch attempts against a
	// still-unhealthy store instead of hammering it every BatchTimeout;
	// it resets on each successful or dead-lettered commit.
	retryBackoff := util.NewBackoff()
	retryBackoff.Base = 250 * time.Millisecond
	retryBackoff.Max = w.cfg.BatchTimeout

	timer := time.NewTimer(w.cfg.BatchTimeout)
	defer timer.Stop()

	// commit flushes buffer if non-empty and returns the delay the caller
	// should wait before the next scheduled attempt.
	commit := func(reason string) time.Duration {
		if len(buffer) == 0 {
			return w.cfg.BatchTimeout
		}
		ctx, span := spanlink.StartLinkedSpan(context.Background(), tracer, "writer.commit")
		start := time.Now()
		err := w.flusher.FlushBatch(ctx, buffer)
		span.End()
		metrics.BatchCommitLatency.Observe(time.Since(start).Seconds())

		if err != nil {
			log.Warnw("batch commit failed", "reason", reason, "size", len(buffer), "err", err, "attempt", retries+1)
			retries++
			// The acks of this attempt receive its error and are not
			// re-sent; the buffer itself is kept for the next cycle.
			deliverAcks(acks, err)
			acks = acks[:0]
			if retries < w.cfg.MaxRetries {
				// Retain the buffer for the next cycle (spec.md §4.3 "the
				// buffer is retained so that the next cycle may retry").
				return retryBackoff.Next()
			}
			log.Errorw("batch exhausted retries, dead-lettering",
				"size", len(buffer), "agents", summarizeAgents(buffer), "max_retries", w.cfg.MaxRetries)
			buffer = buffer[:0]
			retries = 0
			retryBackoff.Reset()
			return w.cfg.BatchTimeout
		}

		metrics.SamplesCommittedTotal.Add(float64(len(buffer)))
		deliverAcks(acks, nil)
		buffer = buffer[:0]
		acks = acks[:0]
		retries = 0
		retryBackoff.Reset()
		return w.cfg.BatchTimeout
	}

	for {
		select {
		case req, ok := <-w.reqs:
			if !ok {
				commit("shutdown")
				return
			}
			buffer = append(buffer, req.Sample)
			if req.Ack != nil {
				acks = append(acks, req.Ack)
			}
			metrics.QueueDepth.Set(float64(len(w.reqs)))
			if len(buffer) >= w.cfg.BatchSize {
				resetTimer(timer, commit("size"))
			}
		case <-timer.C:
			timer.Reset(commit("timeout"))
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func deliverAcks(acks []chan error, err error) {
	for _, ack := range acks {
		ack <- err
		close(ack)
	}
}

func summarizeAgents(samples []model.Sample) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range samples {
		if _, ok := seen[s.AgentID]; ok {
			continue
		}
		seen[s.AgentID] = struct{}{}
		out = append(out, s.AgentID)
		if len(out) >= 10 {
			break
		}
	}
	return out
}
