package writer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/internal/writer"
)

type fakeFlusher struct {
	mu        sync.Mutex
	batches   [][]model.Sample
	failUntil int // FlushBatch fails for the first failUntil calls
	calls     int
}

func (f *fakeFlusher) FlushBatch(ctx context.Context, samples []model.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return errors.New("simulated transient failure")
	}
	cp := make([]model.Sample, len(samples))
	copy(cp, samples)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeFlusher) snapshot() [][]model.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]model.Sample, len(f.batches))
	copy(out, f.batches)
	return out
}

func sample(agentID string, ts int64) model.Sample {
	return model.Sample{AgentID: agentID, Timestamp: ts}
}

func Test_Writer_Commits_On_BatchSize(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{}
	w := writer.New(f, writer.Config{BatchSize: 3, BatchTimeout: time.Hour, ChannelCap: 10})
	defer w.Close()

	for ts := int64(1); ts <= 3; ts++ {
		require.True(t, w.TrySend(writer.Request{Sample: sample("a1", ts)}))
	}

	require.Eventually(t, func() bool {
		return len(f.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	batch := f.snapshot()[0]
	assert.Len(t, batch, 3)
}

func Test_Writer_Commits_On_Timeout(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{}
	w := writer.New(f, writer.Config{BatchSize: 100, BatchTimeout: 20 * time.Millisecond, ChannelCap: 10})
	defer w.Close()

	require.True(t, w.TrySend(writer.Request{Sample: sample("a1", 1)}))

	require.Eventually(t, func() bool {
		return len(f.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func Test_Writer_SaveSync_Ack_Delivers_Nil_On_Success(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{}
	w := writer.New(f, writer.Config{BatchSize: 1, BatchTimeout: time.Hour, ChannelCap: 10})
	defer w.Close()

	ack := make(chan error, 1)
	require.True(t, w.TrySend(writer.Request{Sample: sample("a1", 1), Ack: ack}))

	select {
	case err := <-ack:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ack not delivered")
	}
}

func Test_Writer_Retries_Then_DeadLetters_After_MaxRetries(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{failUntil: 100}
	w := writer.New(f, writer.Config{
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		ChannelCap:   10,
		MaxRetries:   2,
	})
	defer w.Close()

	ack := make(chan error, 1)
	require.True(t, w.TrySend(writer.Request{Sample: sample("a1", 1), Ack: ack}))

	select {
	case err := <-ack:
		assert.Error(t, err, "the ack must carry the failed commit's error")
	case <-time.After(2 * time.Second):
		t.Fatal("ack not delivered after a failed commit")
	}

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls >= 2
	}, 2*time.Second, 5*time.Millisecond, "the retained batch must be retried up to MaxRetries")
}

// blockingFlusher blocks inside FlushBatch until release is closed, so the
// writer's commit loop can be pinned mid-commit and the request channel
// deterministically fills up behind it.
type blockingFlusher struct {
	release chan struct{}
}

func (b *blockingFlusher) FlushBatch(ctx context.Context, samples []model.Sample) error {
	<-b.release
	return nil
}

func Test_Writer_TrySend_Reports_False_When_Channel_Full(t *testing.T) {
	t.Parallel()

	f := &blockingFlusher{release: make(chan struct{})}
	w := writer.New(f, writer.Config{BatchSize: 1, BatchTimeout: time.Hour, ChannelCap: 1})

	// BatchSize == 1 means this immediately triggers a commit that blocks
	// in FlushBatch until we release it, pinning the run loop.
	require.True(t, w.TrySend(writer.Request{Sample: sample("a1", 1)}))

	require.Eventually(t, func() bool {
		// Fill the now-unattended channel until it saturates.
		return !w.TrySend(writer.Request{Sample: sample("a1", 2)})
	}, time.Second, 5*time.Millisecond, "TrySend must report false once the channel saturates")

	close(f.release)
	w.Close()
}

func Test_Writer_Close_Flushes_Remaining_Buffer(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{}
	w := writer.New(f, writer.Config{BatchSize: 100, BatchTimeout: time.Hour, ChannelCap: 10})

	require.True(t, w.TrySend(writer.Request{Sample: sample("a1", 1)}))
	require.True(t, w.TrySend(writer.Request{Sample: sample("a1", 2)}))

	w.Close()

	batches := f.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}
