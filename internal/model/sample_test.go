package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ablate-ai/iris/internal/model"
)

func Test_Sample_Equal_Compares_Identity_Not_Payload(t *testing.T) {
	t.Parallel()

	a := model.Sample{
		AgentID:   "a1",
		Timestamp: 100,
		Hostname:  "host-a1",
		System:    &model.SystemMetrics{CPU: &model.CPUMetrics{UsagePercent: 12.5}},
	}
	b := model.Sample{
		AgentID:   "a1",
		Timestamp: 100,
		Hostname:  "host-a1",
		System:    &model.SystemMetrics{CPU: &model.CPUMetrics{UsagePercent: 99.9}},
	}

	assert.True(t, a.Equal(b), "Equal is an identity check on (agent, timestamp, hostname), not a deep payload comparison")
}

func Test_Sample_Equal_False_On_Different_Timestamp(t *testing.T) {
	t.Parallel()

	a := model.Sample{AgentID: "a1", Timestamp: 100, Hostname: "host-a1"}
	b := model.Sample{AgentID: "a1", Timestamp: 200, Hostname: "host-a1"}

	assert.False(t, a.Equal(b))
}

func Test_Sample_Equal_False_On_Different_Agent(t *testing.T) {
	t.Parallel()

	a := model.Sample{AgentID: "a1", Timestamp: 100, Hostname: "host"}
	b := model.Sample{AgentID: "a2", Timestamp: 100, Hostname: "host"}

	assert.False(t, a.Equal(b))
}
