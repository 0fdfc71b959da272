package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ablate-ai/iris/internal/cache"
	"github.com/ablate-ai/iris/internal/model"
)

func sample(agentID string, ts int64) model.Sample {
	return model.Sample{AgentID: agentID, Timestamp: ts, Hostname: "host-" + agentID}
}

func Test_Cache_Latest_Returns_Most_Recent_Push(t *testing.T) {
	t.Parallel()

	c := cache.New(3)
	c.Update(sample("a1", 1))
	c.Update(sample("a1", 2))
	c.Update(sample("a1", 3))

	got, ok := c.Latest("a1")
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Timestamp)
}

func Test_Cache_Latest_Unknown_Agent_Returns_False(t *testing.T) {
	t.Parallel()

	c := cache.New(3)
	_, ok := c.Latest("ghost")
	assert.False(t, ok)
}

func Test_Cache_Ring_Evicts_Oldest_Beyond_Capacity(t *testing.T) {
	t.Parallel()

	c := cache.New(3)
	for ts := int64(1); ts <= 5; ts++ {
		c.Update(sample("a1", ts))
	}

	hist := c.History("a1", 10)
	require.Len(t, hist, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{hist[0].Timestamp, hist[1].Timestamp, hist[2].Timestamp})
}

func Test_Cache_History_Respects_Limit_Smaller_Than_Cap(t *testing.T) {
	t.Parallel()

	c := cache.New(5)
	for ts := int64(1); ts <= 5; ts++ {
		c.Update(sample("a1", ts))
	}

	hist := c.History("a1", 2)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(4), hist[0].Timestamp)
	assert.Equal(t, int64(5), hist[1].Timestamp)
}

func Test_Cache_AllAgents_Is_Sorted_And_Distinct(t *testing.T) {
	t.Parallel()

	c := cache.New(3)
	c.Update(sample("zebra", 1))
	c.Update(sample("apple", 1))
	c.Update(sample("apple", 2))

	assert.Equal(t, []string{"apple", "zebra"}, c.AllAgents())
	assert.Equal(t, 2, c.AgentCount())
}

func Test_Cache_Len_Tracks_Ring_Occupancy_Not_Capacity(t *testing.T) {
	t.Parallel()

	c := cache.New(5)
	c.Update(sample("a1", 1))
	c.Update(sample("a1", 2))

	assert.Equal(t, 2, c.Len("a1"))
	assert.Equal(t, 0, c.Len("ghost"))
}

func Test_Cache_New_Clamps_NonPositive_MaxSize_To_One(t *testing.T) {
	t.Parallel()

	c := cache.New(0)
	c.Update(sample("a1", 1))
	c.Update(sample("a1", 2))

	assert.Equal(t, 1, c.Len("a1"))
}
