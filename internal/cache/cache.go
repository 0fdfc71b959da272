// Package cache implements the Ring Cache (C1): a per-agent bounded FIFO of
// the newest samples, kept in memory for low-latency "latest" and "recent
// history" reads. It is authoritative for freshness but not for full
// history once an agent's ring exceeds its cap — callers that need more
// must fall back to the persistent store.
package cache

import (
	"sort"
	"sync"

	"github.com/ablate-ai/iris/internal/model"
)

// ring is a fixed-capacity circular buffer of samples for one agent. It
// overwrites the oldest entry once full, giving O(1) amortized writes with
// no backing-array growth over the agent's lifetime.
type ring struct {
	items []model.Sample
	head  int // next write position
	count int // number of valid items (0..cap)
}

func newRing(capacity int) *ring {
	return &ring{items: make([]model.Sample, capacity)}
}

func (r *ring) push(s model.Sample) {
	capacity := len(r.items)
	r.items[r.head] = s
	r.head = (r.head + 1) % capacity
	if r.count < capacity {
		r.count++
	}
}

func (r *ring) snapshot(limit int) []model.Sample {
	if r.count == 0 || limit <= 0 {
		return nil
	}
	n := r.count
	if limit < n {
		n = limit
	}
	capacity := len(r.items)
	// oldest valid index.
	start := (r.head - r.count + capacity) % capacity
	// we want the newest n entries, oldest-first.
	skip := r.count - n
	out := make([]model.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = r.items[(start+skip+i)%capacity]
	}
	return out
}

func (r *ring) latest() (model.Sample, bool) {
	if r.count == 0 {
		return model.Sample{}, false
	}
	capacity := len(r.items)
	idx := (r.head - 1 + capacity) % capacity
	return r.items[idx], true
}

// Cache is a map of agent_id -> bounded ring<Sample>, guarded by one
// reader-writer lock. Fine-grained (sharded) locking is a reasonable
// alternative under heavy fan-in; a single lock is used here because
// critical sections are brief (array write/copy), the same rationale
// behind the subscriber-map lock in internal/ingest/facade.go.
type Cache struct {
	maxSize int

	mu   sync.RWMutex
	data map[string]*ring
}

// New returns a Cache capping each agent's history at maxSize samples.
// maxSize <= 0 is clamped to 1 so the cache never silently disables itself.
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		data:    make(map[string]*ring),
	}
}

// Update pushes sample to the back of its agent's ring, evicting the oldest
// entry once the cap is exceeded. O(1) amortized; never fails.
func (c *Cache) Update(sample model.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.data[sample.AgentID]
	if !ok {
		r = newRing(c.maxSize)
		c.data[sample.AgentID] = r
	}
	r.push(sample)
}

// Latest returns the most recently ingested sample for agentID, if any.
func (c *Cache) Latest(agentID string) (model.Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.data[agentID]
	if !ok {
		return model.Sample{}, false
	}
	return r.latest()
}

// History returns up to limit samples for agentID, oldest-first. It never
// returns more than the cache's own cap, regardless of limit.
func (c *Cache) History(agentID string, limit int) []model.Sample {
	if limit <= 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.data[agentID]
	if !ok {
		return nil
	}
	return r.snapshot(limit)
}

// Len reports how many samples are currently cached for agentID. Exposed
// for the façade's history merge decision (spec §4.5: "if C1 already has
// limit entries, return it").
func (c *Cache) Len(agentID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.data[agentID]
	if !ok {
		return 0
	}
	return r.count
}

// AgentCount reports how many distinct agent ids are currently tracked,
// without allocating a snapshot slice (cheap enough to call per-ingest).
func (c *Cache) AgentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// AllAgents returns a sorted snapshot of every agent id currently tracked.
func (c *Cache) AllAgents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.data))
	for id := range c.data {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
