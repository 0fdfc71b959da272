// Package store implements the Persistent Store (C2): a single-file,
// single-writer, multi-reader embedded key-value store holding a bounded
// retention window of metrics samples, built on go.etcd.io/bbolt.
//
// All blocking bbolt calls are wrapped so they can be driven from a
// dedicated goroutine pool by callers (the batch writer and retention
// cleaner already run on their own long-lived goroutines; nothing here
// blocks the request-serving path directly). Writes are serialized by
// bbolt's own single-writer guarantee; reads run concurrently against a
// consistent MVCC snapshot.
package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/ablate-ai/iris/internal/model"
)

var (
	metricsBucket     = []byte("metrics")
	agentLatestBucket = []byte("agent_latest")
)

// deleteChunkSize bounds how many keys one delete transaction removes, so a
// long-lived agent's retention backlog never produces a single
// multi-megabyte commit that stalls concurrent readers (spec.md §4.2
// "Rationale for chunked deletes").
const deleteChunkSize = 10000

// Store wraps a bbolt database file holding the `metrics` and
// `agent_latest` tables described in spec.md §3.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the database file at path, initializing both
// buckets in one write transaction so a fresh file is immediately usable.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metricsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(agentLatestBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeSample(sample model.Sample) ([]byte, error) {
	b, err := msgpack.Marshal(&sample)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return b, nil
}

func decodeSample(b []byte) (model.Sample, error) {
	var s model.Sample
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return model.Sample{}, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return s, nil
}

// encodeTimestamp renders ts as a plain big-endian int64, matching
// spec.md's "big-endian encoded int64" value format for agent_latest.
func encodeTimestamp(ts int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ts))
	return b
}

func decodeTimestamp(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

// FlushBatch commits every sample in one write transaction: each becomes a
// row in `metrics`, and each agent's entry in `agent_latest` is advanced
// only if the batch contains a strictly greater timestamp for that agent
// (spec.md §4.2, invariant I1). An empty batch is a no-op that never opens
// a transaction.
func (s *Store) FlushBatch(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		metrics := tx.Bucket(metricsBucket)
		latest := tx.Bucket(agentLatestBucket)

		// Track the max timestamp seen per agent within this batch so we
		// only touch agent_latest once per agent even for large batches.
		batchMax := make(map[string]int64, len(samples))

		for _, sample := range samples {
			value, err := encodeSample(sample)
			if err != nil {
				return err
			}
			key := metricsKey(sample.AgentID, sample.Timestamp)
			if err := metrics.Put(key, value); err != nil {
				return fmt.Errorf("%w: %v", ErrTransientIO, err)
			}
			if cur, ok := batchMax[sample.AgentID]; !ok || sample.Timestamp > cur {
				batchMax[sample.AgentID] = sample.Timestamp
			}
		}

		for agentID, ts := range batchMax {
			existing := latest.Get([]byte(agentID))
			if existingTs, ok := decodeTimestamp(existing); ok && existingTs >= ts {
				continue
			}
			if err := latest.Put([]byte(agentID), encodeTimestamp(ts)); err != nil {
				return fmt.Errorf("%w: %v", ErrTransientIO, err)
			}
		}
		return nil
	})
}

// LatestSample range-scans `metrics` for agentID and returns the row with
// the greatest timestamp, or false if the agent has no rows.
func (s *Store) LatestSample(ctx context.Context, agentID string) (model.Sample, bool, error) {
	var (
		found model.Sample
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		rows, err := scanAgent(tx, agentID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		last := rows[len(rows)-1]
		found, ok = last.sample, true
		return nil
	})
	return found, ok, err
}

// LatestN returns the n rows with the greatest timestamps for agentID, in
// ascending-timestamp order, oldest-first.
func (s *Store) LatestN(ctx context.Context, agentID string, n int) ([]model.Sample, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []model.Sample
	err := s.db.View(func(tx *bolt.Tx) error {
		rows, err := scanAgent(tx, agentID)
		if err != nil {
			return err
		}
		start := 0
		if len(rows) > n {
			start = len(rows) - n
		}
		out = make([]model.Sample, 0, len(rows)-start)
		for _, r := range rows[start:] {
			out = append(out, r.sample)
		}
		return nil
	})
	return out, err
}

// AllAgents enumerates the `agent_latest` index, which is the authoritative
// agent directory (spec.md §3).
func (s *Store) AllAgents(ctx context.Context) ([]string, error) {
	var agents []string
	err := s.db.View(func(tx *bolt.Tx) error {
		latest := tx.Bucket(agentLatestBucket)
		c := latest.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			agents = append(agents, string(k))
		}
		return nil
	})
	sort.Strings(agents)
	return agents, err
}

// DeleteOldest keeps only the keep newest rows for agentID, deleting the
// rest in chunks of at most deleteChunkSize per transaction. It updates
// agent_latest to the new maximum remaining timestamp, or removes the
// entry entirely if no rows remain (spec.md P4).
func (s *Store) DeleteOldest(ctx context.Context, agentID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	var totalDeleted int
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}
		n, done, err := s.deleteOldestChunk(agentID, keep)
		totalDeleted += n
		if err != nil {
			return totalDeleted, err
		}
		if done {
			break
		}
	}
	return totalDeleted, nil
}

// deleteOldestChunk deletes at most one chunk of the oldest rows beyond
// keep, and reports whether no further chunks are needed.
func (s *Store) deleteOldestChunk(agentID string, keep int) (deleted int, done bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		rows, err := scanAgent(tx, agentID)
		if err != nil {
			return err
		}
		if len(rows) <= keep {
			done = true
			return nil
		}
		excess := rows[:len(rows)-keep]
		if len(excess) > deleteChunkSize {
			excess = excess[:deleteChunkSize]
		}
		metrics := tx.Bucket(metricsBucket)
		for _, r := range excess {
			if err := metrics.Delete(r.key); err != nil {
				return fmt.Errorf("%w: %v", ErrTransientIO, err)
			}
		}
		deleted = len(excess)
		if deleted == len(rows)-keep {
			done = true
		}
		return updateAgentLatestAfterDelete(tx, agentID)
	})
	return deleted, done, err
}

// DeleteBefore removes every row with ts < cutoff, across every agent in
// agent_latest, in chunks of at most deleteChunkSize per transaction, and
// recomputes each touched agent's agent_latest entry. It returns the total
// number of rows deleted (spec.md P5).
func (s *Store) DeleteBefore(ctx context.Context, cutoff int64) (int, error) {
	agents, err := s.AllAgents(ctx)
	if err != nil {
		return 0, err
	}
	var total int
	for _, agentID := range agents {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		for {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			n, done, err := s.deleteBeforeChunk(agentID, cutoff)
			total += n
			if err != nil {
				return total, err
			}
			if done {
				break
			}
		}
	}
	return total, nil
}

func (s *Store) deleteBeforeChunk(agentID string, cutoff int64) (deleted int, done bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		rows, err := scanAgent(tx, agentID)
		if err != nil {
			return err
		}
		var stale []scannedRow
		for _, r := range rows {
			if r.ts < cutoff {
				stale = append(stale, r)
			}
		}
		if len(stale) == 0 {
			done = true
			return nil
		}
		if len(stale) > deleteChunkSize {
			stale = stale[:deleteChunkSize]
			done = false
		} else {
			done = true
		}
		metrics := tx.Bucket(metricsBucket)
		for _, r := range stale {
			if err := metrics.Delete(r.key); err != nil {
				return fmt.Errorf("%w: %v", ErrTransientIO, err)
			}
		}
		deleted = len(stale)
		return updateAgentLatestAfterDelete(tx, agentID)
	})
	return deleted, done, err
}

// updateAgentLatestAfterDelete recomputes agentID's entry in agent_latest
// from whatever rows remain in `metrics`, removing the entry if none do
// (spec.md I2).
func updateAgentLatestAfterDelete(tx *bolt.Tx, agentID string) error {
	rows, err := scanAgent(tx, agentID)
	if err != nil {
		return err
	}
	latest := tx.Bucket(agentLatestBucket)
	if len(rows) == 0 {
		return latest.Delete([]byte(agentID))
	}
	maxTs := rows[len(rows)-1].ts
	return latest.Put([]byte(agentID), encodeTimestamp(maxTs))
}

type scannedRow struct {
	key    []byte
	ts     int64
	sample model.Sample
}

// scanAgent range-scans every row for agentID and returns them sorted by
// (ts, key) ascending. For non-negative timestamps that is already the
// on-disk key order because the key schema zero-pads the timestamp (spec.md
// P2); the stable sort below puts negative timestamps, whose padded text
// sorts in reverse, into numeric order while keeping key order for ties.
func scanAgent(tx *bolt.Tx, agentID string) ([]scannedRow, error) {
	metrics := tx.Bucket(metricsBucket)
	c := metrics.Cursor()
	start := agentRangeStart(agentID)
	end := agentRangeEnd(agentID)

	var rows []scannedRow
	for k, v := c.Seek(start); k != nil && bytesLess(k, end); k, v = c.Next() {
		sample, err := decodeSample(v)
		if err != nil {
			// A corrupt row must not poison the whole scan; skip and
			// keep going (spec.md §7 CorruptPayload).
			continue
		}
		ts, ok := parseTimestamp(k, agentID)
		if !ok {
			continue
		}
		keyCopy := make([]byte, len(k))
		copy(keyCopy, k)
		rows = append(rows, scannedRow{key: keyCopy, ts: ts, sample: sample})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts < rows[j].ts })
	return rows, nil
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
