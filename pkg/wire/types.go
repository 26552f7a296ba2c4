package wire

import "time"

// Sample is the unit of ingestion: one device's derived metrics for one
// capture instant. It is the JSON body of agent submissions and the body
// stored per device on the collector.
type Sample struct {
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"timestamp"`
	System    SystemMetrics      `json:"system_metrics"`
	Network   []InterfaceMetrics `json:"network_metrics"`
}

// SystemMetrics holds host-wide instantaneous metrics.
type SystemMetrics struct {
	UptimeSeconds float64 `json:"uptime"`
	// CPUUsagePercent is nil on the first tick after agent start, when no
	// previous counter sample exists to difference against.
	CPUUsagePercent *float64 `json:"cpu_usage,omitempty"`
	MemoryPercent   float64  `json:"memory_percent"`
	MemoryUsedKB    uint64   `json:"memory_kb"`
	DiskPercent     float64  `json:"disk_percent"`
	DiskUsedKB      uint64   `json:"disk_kb"`
	Load1           float64  `json:"load_1"`
	Load5           float64  `json:"load_5"`
	Load15          float64  `json:"load_15"`
}

// InterfaceMetrics holds one network interface's cumulative counters plus
// the per-second rates derived from the previous tick. Rates are zero on
// the first tick and after a counter reset.
type InterfaceMetrics struct {
	Name       string `json:"interface"`
	IPAddress  string `json:"ip_address,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`

	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`

	RxBytesPerSec   float64 `json:"rx_bytes_per_sec"`
	TxBytesPerSec   float64 `json:"tx_bytes_per_sec"`
	RxPacketsPerSec float64 `json:"rx_packets_per_sec"`
	TxPacketsPerSec float64 `json:"tx_packets_per_sec"`
}

// DeviceState is the collector-side view of a device: its latest sample
// plus bookkeeping timestamps and the derived status.
type DeviceState struct {
	DeviceID  string    `json:"device_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sample    Sample    `json:"latest_sample"`
	Status    string    `json:"status,omitempty"`
}
