// internal/metrics/prom.go
// Package metrics centralises Prometheus metric registration for the Iris
// server binaries. It exposes typed collectors so call sites can remain
// import-cycle-free, and registers with the global prometheus.DefaultRegisterer,
// which the server binaries expose via promhttp.Handler() on /metrics
// (see cmd/iris-server/main.go).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// Ingest façade (C5) ------------------------------------------------
	SamplesReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iris",
		Subsystem: "ingest",
		Name:      "samples_received_total",
		Help:      "Total number of samples accepted by the ingest façade (save_async + save_sync).",
	})

	SamplesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iris",
		Subsystem: "ingest",
		Name:      "samples_dropped_total",
		Help:      "Samples dropped by save_async due to a full write queue.",
	})

	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iris",
		Subsystem: "ingest",
		Name:      "live_subscribers",
		Help:      "Current number of active live-feed subscriber connections.",
	})

	// Batch writer (C3) ---------------------------------------------------
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iris",
		Subsystem: "writer",
		Name:      "queue_depth",
		Help:      "Number of requests currently buffered in the batch writer's channel.",
	})

	SamplesCommittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iris",
		Subsystem: "writer",
		Name:      "samples_committed_total",
		Help:      "Total number of samples committed to the persistent store.",
	})

	BatchCommitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "iris",
		Subsystem: "writer",
		Name:      "batch_commit_seconds",
		Help:      "Latency of one flush_batch transaction against the persistent store.",
		Buckets:   prometheus.DefBuckets,
	})

	// Retention cleaner (C4) ----------------------------------------------
	CleanerDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iris",
		Subsystem: "retention",
		Name:      "rows_deleted_total",
		Help:      "Total number of rows deleted by the retention cleaner (count- and age-based combined).",
	})

	CleanerPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "iris",
		Subsystem: "retention",
		Name:      "pass_seconds",
		Help:      "Wall-clock duration of one retention cleaner pass.",
		Buckets:   prometheus.DefBuckets,
	})

	// Ring cache (C1) -------------------------------------------------------
	CachedAgents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "iris",
		Subsystem: "cache",
		Name:      "tracked_agents",
		Help:      "Number of distinct agent ids currently held in the ring cache.",
	})
)

// Register exports all metrics; safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SamplesReceivedTotal,
			SamplesDroppedTotal,
			Subscribers,
			QueueDepth,
			SamplesCommittedTotal,
			BatchCommitLatency,
			CleanerDeletedTotal,
			CleanerPassDuration,
			CachedAgents,
		)
	})
}
