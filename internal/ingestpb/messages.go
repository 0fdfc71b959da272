// Package ingestpb defines the wire messages and gRPC service contract for
// the ingest RPC named in spec.md §6: a unary Report, a bidirectional
// StreamReport, and a storage-free Heartbeat. There is no protoc toolchain
// available in this environment, so the service plumbing below is
// hand-written in the exact shape protoc-gen-go-grpc emits (see
// internal/ingestpb/ingest_grpc.go), and the wire messages are plain
// msgpack-tagged structs carried over a custom grpc codec (codec.go)
// instead of generated protobuf message types.
package ingestpb

import "github.com/ablate-ai/iris/internal/model"

// MetricsSample is the wire form of one agent's reported sample. It carries
// the same fields as model.Sample (sharing its SystemMetrics payload type);
// ToModel and FromModel copy between the two.
type MetricsSample struct {
	AgentID   string                `msgpack:"agent_id"`
	Timestamp int64                 `msgpack:"timestamp"`
	Hostname  string                `msgpack:"hostname"`
	System    *model.SystemMetrics  `msgpack:"system,omitempty"`
}

// ToModel converts the wire message into the storage core's Sample type.
func (m *MetricsSample) ToModel() model.Sample {
	return model.Sample{
		AgentID:   m.AgentID,
		Timestamp: m.Timestamp,
		Hostname:  m.Hostname,
		System:    m.System,
	}
}

// FromModel populates a wire message from a storage core Sample.
func FromModel(s model.Sample) *MetricsSample {
	return &MetricsSample{
		AgentID:   s.AgentID,
		Timestamp: s.Timestamp,
		Hostname:  s.Hostname,
		System:    s.System,
	}
}

// ReportAck is returned by both Report and the initial message of
// StreamReport (spec.md §6: "server returns one acknowledgment when the
// stream is established").
type ReportAck struct {
	Success bool   `msgpack:"success"`
	Message string `msgpack:"message"`
}

// HeartbeatRequest carries nothing; its presence is the request.
type HeartbeatRequest struct{}

// HeartbeatResponse reports the server's wall clock, in milliseconds since
// epoch, and does not touch storage (spec.md §6).
type HeartbeatResponse struct {
	ServerTimeMs int64 `msgpack:"server_time_ms"`
}
