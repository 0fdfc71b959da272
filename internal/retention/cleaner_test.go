package retention_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ablate-ai/iris/internal/retention"
)

// fakeStore is an in-memory Store double so the cleaner can be exercised
// without a real bbolt file.
type fakeStore struct {
	mu               sync.Mutex
	agents           []string
	deleteOldest     map[string]int // agentID -> rows deleted on next DeleteOldest call
	deleteBefore     int
	deleteOldestArgs []string // agent ids passed to DeleteOldest, in call order
	deleteBeforeCalls int
}

func (f *fakeStore) AllAgents(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.agents))
	copy(out, f.agents)
	return out, nil
}

func (f *fakeStore) DeleteOldest(ctx context.Context, agentID string, keep int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteOldestArgs = append(f.deleteOldestArgs, agentID)
	return f.deleteOldest[agentID], nil
}

func (f *fakeStore) DeleteBefore(ctx context.Context, cutoff int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteBeforeCalls++
	return f.deleteBefore, nil
}

func Test_Cleaner_RunOnce_Calls_DeleteOldest_For_Every_Agent(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		agents:       []string{"a1", "a2"},
		deleteOldest: map[string]int{"a1": 5, "a2": 3},
	}
	c := retention.New(store, retention.Config{
		MaxRecordsPerAgent: 100,
		CleanupInterval:    time.Hour,
		Enabled:            true,
	})

	c.RunOnce(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.ElementsMatch(t, []string{"a1", "a2"}, store.deleteOldestArgs)
}

func Test_Cleaner_RunOnce_Skips_DeleteBefore_When_RetentionDays_Zero(t *testing.T) {
	t.Parallel()

	store := &fakeStore{agents: []string{"a1"}, deleteOldest: map[string]int{"a1": 0}, deleteBefore: 99}
	c := retention.New(store, retention.Config{
		MaxRecordsPerAgent: 100,
		RetentionDays:      0,
		CleanupInterval:    time.Hour,
		Enabled:            true,
	})

	c.RunOnce(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Zero(t, store.deleteBeforeCalls, "delete_before must not run when retention_days is 0")
}

func Test_Cleaner_RunOnce_Calls_DeleteBefore_When_RetentionDays_Set(t *testing.T) {
	t.Parallel()

	store := &fakeStore{agents: []string{"a1"}, deleteOldest: map[string]int{"a1": 0}, deleteBefore: 7}
	c := retention.New(store, retention.Config{
		MaxRecordsPerAgent: 100,
		RetentionDays:      30,
		CleanupInterval:    time.Hour,
		Enabled:            true,
	})

	c.RunOnce(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.deleteBeforeCalls)
}

func Test_Cleaner_Disabled_Run_Blocks_Until_Stop(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := retention.New(store, retention.Config{Enabled: false})

	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("disabled cleaner must not return until Stop is called")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func Test_Cleaner_Stop_Is_Idempotent(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := retention.New(store, retention.Config{Enabled: false})
	go c.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.NoError(t, c.Stop(ctx), "Stop must be safe to call more than once")
}

func Test_Cleaner_DefaultConfig_Matches_Documented_Defaults(t *testing.T) {
	t.Parallel()

	d := retention.DefaultConfig()
	assert.Equal(t, 604800, d.MaxRecordsPerAgent)
	assert.Equal(t, 0, d.RetentionDays)
	assert.Equal(t, 6*time.Hour, d.CleanupInterval)
	assert.True(t, d.Enabled)
}
