// Package ingest implements the Ingest Façade (C5): the single entry point
// that owns the ring cache, persistent store, batch writer and retention
// cleaner, and exposes the operations every transport (gRPC ingest service,
// read API, CLI) is built on top of.
package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ablate-ai/iris/internal/cache"
	"github.com/ablate-ai/iris/internal/logging"
	"github.com/ablate-ai/iris/internal/metrics"
	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/internal/retention"
	"github.com/ablate-ai/iris/internal/store"
	"github.com/ablate-ai/iris/internal/writer"
)

// Config parameterizes the façade. DBPath == "" selects memory-only mode
// (spec.md §4.5 "Mode switch"): C2/C3/C4 are never started, reads are
// served exclusively from the ring cache, and save_sync returns as soon as
// the cache is updated.
type Config struct {
	DBPath       string
	CacheSize    int
	Writer       writer.Config
	Retention    retention.Config
	SubscriberCap int // buffered capacity of each live-feed subscriber channel
}

func (c Config) withDefaults() Config {
	if c.CacheSize <= 0 {
		c.CacheSize = 100
	}
	if c.SubscriberCap <= 0 {
		c.SubscriberCap = 64
	}
	return c
}

// Facade is the ingest entry point described in spec.md §4.5. It is safe
// for concurrent use by any number of callers.
type Facade struct {
	cfg Config

	cache *cache.Cache
	store *store.Store // nil in memory-only mode
	w     *writer.Writer
	clean *retention.Cleaner

	subsMu sync.RWMutex
	subs   map[chan model.Sample]struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a Facade. When cfg.DBPath is empty the façade runs in
// memory-only mode; otherwise it opens (or creates) the store file and
// starts the batch writer and retention cleaner background goroutines.
func New(cfg Config) (*Facade, error) {
	cfg = cfg.withDefaults()

	f := &Facade{
		cfg:    cfg,
		cache:  cache.New(cfg.CacheSize),
		subs:   make(map[chan model.Sample]struct{}),
		closed: make(chan struct{}),
	}

	if cfg.DBPath == "" {
		logging.Sugar().Infow("ingest façade starting in memory-only mode")
		return f, nil
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, newStorageError(KindConfigInvalid, err)
	}
	f.store = st
	f.w = writer.New(st, cfg.Writer)
	f.clean = retention.New(st, cfg.Retention)
	go f.clean.Run()

	return f, nil
}

// isShuttingDown reports whether Shutdown has started.
func (f *Facade) isShuttingDown() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// SaveAsync enqueues sample for eventual persistence and updates the ring
// cache and live subscribers immediately. In memory-only mode there is
// nothing to enqueue; the cache update alone satisfies durability for the
// session. Returns ErrBackpressure if the write queue is full and
// ErrShutdown if called after Shutdown (spec.md §7).
func (f *Facade) SaveAsync(sample model.Sample) error {
	if f.isShuttingDown() {
		return ErrShutdown
	}
	if err := ValidateAgentID(sample.AgentID); err != nil {
		return err
	}
	f.cache.Update(sample)
	f.publish(sample)
	metrics.SamplesReceivedTotal.Inc()
	metrics.CachedAgents.Set(float64(f.cache.AgentCount()))

	if f.w == nil {
		return nil
	}
	if !f.w.TrySend(writer.Request{Sample: sample}) {
		metrics.SamplesDroppedTotal.Inc()
		logging.Sugar().Warnw("save_async dropped sample, write queue full", "agent_id", sample.AgentID)
		return ErrBackpressure
	}
	return nil
}

// SaveSync enqueues sample and blocks until it has been durably committed,
// the commit attempt carrying it fails, or the context is done. In memory-only mode it returns as soon as the
// cache is updated, since there is no persistent store to await (spec.md
// §4.5 "Mode switch").
func (f *Facade) SaveSync(ctx context.Context, sample model.Sample) error {
	if f.isShuttingDown() {
		return ErrShutdown
	}
	if err := ValidateAgentID(sample.AgentID); err != nil {
		return err
	}
	f.cache.Update(sample)
	f.publish(sample)
	metrics.SamplesReceivedTotal.Inc()
	metrics.CachedAgents.Set(float64(f.cache.AgentCount()))

	if f.w == nil {
		return nil
	}

	ack := make(chan error, 1)
	if err := f.w.Send(ctx, writer.Request{Sample: sample, Ack: ack}); err != nil {
		return classifyStoreErr(err)
	}
	select {
	case err := <-ack:
		return classifyStoreErr(err)
	case <-ctx.Done():
		return classifyStoreErr(ctx.Err())
	}
}

// ListAgents returns every agent id known to the façade: the union of what
// the cache currently holds and, when persistence is enabled, what the
// store's agent_latest index tracks (an agent may have been evicted from
// the cache but still have persisted history).
func (f *Facade) ListAgents(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, id := range f.cache.AllAgents() {
		seen[id] = struct{}{}
	}
	if f.store != nil {
		persisted, err := f.store.AllAgents(ctx)
		if err != nil {
			return nil, classifyStoreErr(err)
		}
		for _, id := range persisted {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the most recent sample for agentID, preferring the ring
// cache (always fresher or equal) and falling back to the persistent store
// when the agent is not currently cached.
func (f *Facade) Latest(ctx context.Context, agentID string) (model.Sample, error) {
	if s, ok := f.cache.Latest(agentID); ok {
		return s, nil
	}
	if f.store == nil {
		return model.Sample{}, ErrNotFound
	}
	s, ok, err := f.store.LatestSample(ctx, agentID)
	if err != nil {
		return model.Sample{}, classifyStoreErr(err)
	}
	if !ok {
		return model.Sample{}, ErrNotFound
	}
	return s, nil
}

// History returns up to limit samples for agentID, oldest-first (spec.md
// §4.5). When the cache alone already holds limit entries it is returned
// directly; otherwise cache and store results are merged, deduplicated by
// (timestamp, value), sorted, and truncated to the newest limit entries.
func (f *Facade) History(ctx context.Context, agentID string, limit int) ([]model.Sample, error) {
	if limit <= 0 {
		return nil, nil
	}

	cached := f.cache.History(agentID, limit)
	if f.cache.Len(agentID) >= limit || f.store == nil {
		return cached, nil
	}

	persisted, err := f.store.LatestN(ctx, agentID, limit)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	if len(persisted) == 0 {
		return cached, nil
	}
	if len(cached) == 0 {
		return persisted, nil
	}

	merged := mergeHistory(cached, persisted, limit)
	return merged, nil
}

// mergeHistory combines two oldest-first slices that may overlap, removes
// duplicate observations (same agent+timestamp+hostname), sorts by
// timestamp ascending, and returns at most the newest limit entries.
func mergeHistory(a, b []model.Sample, limit int) []model.Sample {
	combined := make([]model.Sample, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp < combined[j].Timestamp
	})

	deduped := make([]model.Sample, 0, len(combined))
	for _, s := range combined {
		if n := len(deduped); n > 0 && deduped[n-1].Equal(s) {
			continue
		}
		deduped = append(deduped, s)
	}

	if len(deduped) > limit {
		deduped = deduped[len(deduped)-limit:]
	}
	return deduped
}

// Subscribe registers a new live-feed listener and returns a channel of
// every sample accepted from this point forward, plus an unsubscribe func
// the caller must invoke when done. A sample is dropped for a subscriber
// whose channel is full (the publisher never blocks on it); the channel
// stays subscribed, matching the façade's own never-block-the-ingest-path
// guarantee.
func (f *Facade) Subscribe() (<-chan model.Sample, func()) {
	ch := make(chan model.Sample, f.cfg.SubscriberCap)
	f.subsMu.Lock()
	f.subs[ch] = struct{}{}
	metrics.Subscribers.Set(float64(len(f.subs)))
	f.subsMu.Unlock()

	unsubscribe := func() {
		f.subsMu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
			metrics.Subscribers.Set(float64(len(f.subs)))
		}
		f.subsMu.Unlock()
	}
	return ch, unsubscribe
}

func (f *Facade) publish(sample model.Sample) {
	f.subsMu.RLock()
	defer f.subsMu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- sample:
		default:
			// Slow subscriber; drop rather than block the ingest path.
		}
	}
}

// cleanerStopBudget and writerDrainBudget are the bounded waits spec.md
// §4.5 prescribes for shutdown's two stages: the cleaner must stop before
// the write channel is closed, so a long in-flight delete does not race a
// batch still being committed against the same store handle.
const (
	cleanerStopBudget = 5 * time.Second
	writerDrainBudget = 10 * time.Second
)

// Shutdown signals the retention cleaner to stop and waits up to
// cleanerStopBudget for it, then closes the write channel so the batch
// writer observes end-of-stream and waits up to writerDrainBudget for it to
// drain, per spec.md §4.5's ordering. It is idempotent; subsequent calls
// return immediately. After Shutdown returns, all further SaveAsync/SaveSync
// calls return ErrShutdown. A stage that times out is abandoned (spec.md
// §7: "Abort is acceptable only after the write channel is closed so no
// new work is lost") but the remaining stages still run.
func (f *Facade) Shutdown(ctx context.Context) error {
	var err error
	f.closeOnce.Do(func() {
		close(f.closed)

		f.subsMu.Lock()
		for ch := range f.subs {
			delete(f.subs, ch)
			close(ch)
		}
		f.subsMu.Unlock()

		if f.clean != nil {
			cleanCtx, cancel := context.WithTimeout(ctx, cleanerStopBudget)
			e := f.clean.Stop(cleanCtx)
			cancel()
			if e != nil {
				err = errors.Join(err, e)
			}
		}

		if f.w != nil {
			done := make(chan struct{})
			go func() {
				f.w.Close()
				close(done)
			}()
			drainCtx, cancel := context.WithTimeout(ctx, writerDrainBudget)
			select {
			case <-done:
			case <-drainCtx.Done():
				err = errors.Join(err, drainCtx.Err())
			}
			cancel()
		}

		if f.store != nil {
			if e := f.store.Close(); e != nil {
				err = errors.Join(err, e)
			}
		}
	})
	return err
}

// RunRetentionOnce triggers one synchronous retention pass; exposed for
// operator-triggered cleanup and tests. A no-op in memory-only mode.
func (f *Facade) RunRetentionOnce(ctx context.Context) {
	if f.clean != nil {
		f.clean.RunOnce(ctx)
	}
}
