package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/internal/retention"
	"github.com/ablate-ai/iris/internal/writer"
)

func sample(agentID string, ts int64) model.Sample {
	return model.Sample{AgentID: agentID, Timestamp: ts, Hostname: "host-" + agentID}
}

func Test_Facade_MemoryOnly_SaveSync_Returns_Without_A_Store(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	require.NoError(t, f.SaveSync(context.Background(), sample("a1", 1)))

	got, err := f.Latest(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Timestamp)
}

func Test_Facade_MemoryOnly_ListAgents_And_History(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	require.NoError(t, f.SaveAsync(sample("a1", 1)))
	require.NoError(t, f.SaveAsync(sample("a2", 1)))

	agents, err := f.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, agents)

	hist, err := f.History(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func Test_Facade_Latest_Unknown_Agent_Returns_NotFound(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	_, err = f.Latest(context.Background(), "ghost")
	require.Error(t, err)
	var serr *ingest.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ingest.KindNotFound, serr.Kind)
}

func Test_Facade_WithStore_SaveSync_Persists_Beyond_Cache_Eviction(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "iris.db")
	f, err := ingest.New(ingest.Config{
		DBPath:    path,
		CacheSize: 2,
		Writer:    writer.Config{BatchSize: 1, BatchTimeout: time.Hour, ChannelCap: 10},
		Retention: retention.Config{Enabled: false},
	})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	ctx := context.Background()
	for ts := int64(1); ts <= 5; ts++ {
		require.NoError(t, f.SaveSync(ctx, sample("a1", ts)))
	}

	// CacheSize is 2, so the ring no longer holds ts=1..3, but the store
	// does; History must merge both sources.
	hist, err := f.History(ctx, "a1", 5)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	for i, s := range hist {
		assert.Equal(t, int64(i+1), s.Timestamp)
	}
}

func Test_Facade_History_Dedupes_Overlap_Between_Cache_And_Store(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "iris.db")
	f, err := ingest.New(ingest.Config{
		DBPath:    path,
		CacheSize: 5,
		Writer:    writer.Config{BatchSize: 1, BatchTimeout: time.Hour, ChannelCap: 10},
		Retention: retention.Config{Enabled: false},
	})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	ctx := context.Background()
	for ts := int64(1); ts <= 3; ts++ {
		require.NoError(t, f.SaveSync(ctx, sample("a1", ts)))
	}

	hist, err := f.History(ctx, "a1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 3, "overlapping cache+store rows for the same observation must not be double-counted")
}

func Test_Facade_SaveSync_Rejects_AgentID_With_NUL_Byte(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	err = f.SaveSync(context.Background(), sample("bad\x00id", 1))
	assert.ErrorIs(t, err, ingest.ErrInvalidAgentID)

	_, lookupErr := f.Latest(context.Background(), "bad\x00id")
	assert.ErrorIs(t, lookupErr, ingest.ErrNotFound, "a rejected sample must never reach the cache")
}

func Test_Facade_SaveAsync_After_Shutdown_Returns_ErrShutdown(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)
	require.NoError(t, f.Shutdown(context.Background()))

	err = f.SaveAsync(sample("a1", 1))
	assert.ErrorIs(t, err, ingest.ErrShutdown)
}

func Test_Facade_Shutdown_Is_Idempotent(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)

	require.NoError(t, f.Shutdown(context.Background()))
	assert.NoError(t, f.Shutdown(context.Background()))
}

func Test_Facade_Subscribe_Receives_Published_Samples(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)
	defer func() { _ = f.Shutdown(context.Background()) }()

	ch, unsubscribe := f.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.SaveAsync(sample("a1", 1)))

	select {
	case s := <-ch:
		assert.Equal(t, "a1", s.AgentID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive published sample")
	}
}

func Test_Facade_Subscribe_Channel_Closes_On_Shutdown(t *testing.T) {
	t.Parallel()

	f, err := ingest.New(ingest.Config{CacheSize: 10})
	require.NoError(t, err)

	ch, _ := f.Subscribe()
	require.NoError(t, f.Shutdown(context.Background()))

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "subscriber channel must be closed on shutdown")
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was never closed")
	}
}
