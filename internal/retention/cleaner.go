// Package retention implements the Retention Cleaner (C4): a periodic task
// enforcing a per-agent count cap and an optional global age cap against
// the persistent store, updating the agent_latest index as it deletes.
package retention

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/ablate-ai/iris/internal/logging"
	"github.com/ablate-ai/iris/internal/metrics"
	spanlink "github.com/ablate-ai/iris/pkg/otel"
)

var tracer = otel.Tracer("iris/retention")

// Store is the subset of *store.Store the cleaner depends on.
type Store interface {
	AllAgents(ctx context.Context) ([]string, error)
	DeleteOldest(ctx context.Context, agentID string, keep int) (int, error)
	DeleteBefore(ctx context.Context, cutoff int64) (int, error)
}

// Config parameterizes the cleaner. A zero CleanupInterval is replaced by
// the 6-hour default; RetentionDays == 0 is the only legal zero value and
// disables age-based cleanup (spec.md §4.4).
type Config struct {
	MaxRecordsPerAgent int
	RetentionDays      int
	CleanupInterval    time.Duration
	Enabled            bool
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecordsPerAgent: 604800,
		RetentionDays:      0,
		CleanupInterval:    6 * time.Hour,
		Enabled:            true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRecordsPerAgent <= 0 {
		c.MaxRecordsPerAgent = d.MaxRecordsPerAgent
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	// RetentionDays <= 0 legitimately means "disabled"; never defaulted.
	return c
}

// pollInterval is not referenced by the cleaner: Run selects on the stop
// channel directly while idle and each pass checks it before every agent's
// deletion, so Stop is observed without a polling delay.
const pollInterval = 5 * time.Second

// Cleaner runs periodic retention passes until Stop is called.
type Cleaner struct {
	cfg   Config
	store Store

	stop   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Cleaner. It does not start until Run is called.
func New(store Store, cfg Config) *Cleaner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cleaner{
		cfg:    cfg.withDefaults(),
		store:  store,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run blocks, ticking every CleanupInterval, until Stop is called. Intended
// to be invoked via `go cleaner.Run()`.
func (c *Cleaner) Run() {
	defer close(c.done)
	if !c.cfg.Enabled {
		<-c.stop
		return
	}

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.runPassCtx(c.ctx)
		}
	}
}

// Stop signals the cleaner to exit — cancelling any in-flight pass so a
// long delete_oldest/delete_before loop aborts between chunks rather than
// running to completion — and blocks until the cleaner goroutine returns,
// or the provided context is done first.
func (c *Cleaner) Stop(ctx context.Context) error {
	select {
	case <-c.stop:
		// already stopped
	default:
		close(c.stop)
		c.cancel()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes exactly one cleanup pass synchronously; exposed for
// tests and for operator-triggered manual cleanup.
func (c *Cleaner) RunOnce(ctx context.Context) {
	c.runPassCtx(ctx)
}

func (c *Cleaner) runPassCtx(ctx context.Context) {
	ctx, span := spanlink.StartLinkedSpan(ctx, tracer, "retention.pass")
	defer span.End()
	start := time.Now()
	log := logging.Sugar()

	agents, err := c.store.AllAgents(ctx)
	if err != nil {
		log.Errorw("retention: list agents failed", "err", err)
		return
	}
	if len(agents) == 0 {
		return
	}

	var deletedByCount, deletedByAge, agentsCleaned int
	for _, agentID := range agents {
		select {
		case <-c.stop:
			log.Warnw("retention: stop signal received mid-pass, exiting early")
			return
		default:
		}

		n, err := c.store.DeleteOldest(ctx, agentID, c.cfg.MaxRecordsPerAgent)
		if err != nil {
			log.Errorw("retention: delete_oldest failed", "agent_id", agentID, "err", err)
			continue
		}
		if n > 0 {
			deletedByCount += n
			agentsCleaned++
		}
	}

	if c.cfg.RetentionDays > 0 {
		cutoff := time.Now().Unix() - int64(c.cfg.RetentionDays)*86400
		n, err := c.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			log.Errorw("retention: delete_before failed", "err", err)
		} else {
			deletedByAge = n
		}
	}

	total := deletedByCount + deletedByAge
	metrics.CleanerDeletedTotal.Add(float64(total))
	metrics.CleanerPassDuration.Observe(time.Since(start).Seconds())

	log.Infow("retention pass complete",
		"agents_total", len(agents),
		"agents_cleaned", agentsCleaned,
		"deleted_by_count", deletedByCount,
		"deleted_by_age", deletedByAge,
		"retention_days", c.cfg.RetentionDays,
	)
}
