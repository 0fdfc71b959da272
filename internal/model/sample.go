// Package model defines the wire and storage representation of a metrics
// sample: the unit of ingest accepted from agents, cached in memory, and
// persisted to the embedded store.
package model

// Sample is one metrics report pushed by an agent. AgentID must be non-empty
// UTF-8 and must not contain the NUL byte, which the persistent store
// reserves as a key separator.
type Sample struct {
	AgentID   string         `msgpack:"agent_id"`
	Timestamp int64          `msgpack:"timestamp"` // milliseconds since epoch
	Hostname  string         `msgpack:"hostname"`
	System    *SystemMetrics `msgpack:"system,omitempty"`
}

// SystemMetrics is an opaque (to the storage core) nested payload describing
// the reporting host. Its fields are not indexed or interpreted by C1-C5;
// they round-trip as-is.
type SystemMetrics struct {
	CPU       *CPUMetrics     `msgpack:"cpu,omitempty"`
	Memory    *MemoryMetrics  `msgpack:"memory,omitempty"`
	Disks     []DiskMetrics   `msgpack:"disks,omitempty"`
	Network   *NetworkMetrics `msgpack:"network,omitempty"`
	SystemInfo *SystemInfo    `msgpack:"system_info,omitempty"`
	Agent     *AgentSelfMetrics `msgpack:"agent_metrics,omitempty"`
}

type CPUMetrics struct {
	UsagePercent float64   `msgpack:"usage_percent"`
	CoreCount    int32     `msgpack:"core_count"`
	PerCore      []float64 `msgpack:"per_core,omitempty"`
	LoadAvg1     float64   `msgpack:"load_avg_1"`
	LoadAvg5     float64   `msgpack:"load_avg_5"`
	LoadAvg15    float64   `msgpack:"load_avg_15"`
}

type MemoryMetrics struct {
	Total        uint64  `msgpack:"total"`
	Used         uint64  `msgpack:"used"`
	Available    uint64  `msgpack:"available"`
	UsagePercent float64 `msgpack:"usage_percent"`
	SwapTotal    uint64  `msgpack:"swap_total"`
	SwapUsed     uint64  `msgpack:"swap_used"`
}

type DiskMetrics struct {
	MountPoint   string  `msgpack:"mount_point"`
	Total        uint64  `msgpack:"total"`
	Used         uint64  `msgpack:"used"`
	UsagePercent float64 `msgpack:"usage_percent"`
}

type NetworkMetrics struct {
	BytesSent   uint64 `msgpack:"bytes_sent"`
	BytesRecv   uint64 `msgpack:"bytes_recv"`
	PacketsSent uint64 `msgpack:"packets_sent"`
	PacketsRecv uint64 `msgpack:"packets_recv"`
	ErrorsIn    uint64 `msgpack:"errors_in"`
	ErrorsOut   uint64 `msgpack:"errors_out"`
}

type SystemInfo struct {
	OS          string `msgpack:"os"`
	Arch        string `msgpack:"arch"`
	KernelVer   string `msgpack:"kernel_version"`
	Uptime      int64  `msgpack:"uptime_secs"`
}

// AgentSelfMetrics reports the health of the collecting agent process itself.
type AgentSelfMetrics struct {
	VersionString string `msgpack:"version"`
	QueueDepth    int32  `msgpack:"queue_depth"`
	DroppedTotal  uint64 `msgpack:"dropped_total"`
}

// Equal reports whether two samples carry the same (timestamp, agent, value)
// identity for the purposes of history deduplication (spec §4.5). It does
// not do a deep field-by-field comparison of System; timestamp+agent+hostname
// equality is the practical notion of "same observation" the façade needs.
func (s Sample) Equal(o Sample) bool {
	return s.AgentID == o.AgentID && s.Timestamp == o.Timestamp && s.Hostname == o.Hostname
}
