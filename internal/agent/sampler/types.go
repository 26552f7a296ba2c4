package sampler

import "time"

// Raw is one tick's snapshot of OS counters and gauges, taken before any
// differencing. A nil section means that source was unreadable this tick;
// the derived output simply omits it.
type Raw struct {
	Timestamp time.Time

	CPU        *CPUCounters
	Memory     *MemorySnapshot
	Disk       *DiskSnapshot
	Load       *LoadSnapshot
	Uptime     *float64
	Interfaces map[string]InterfaceCounters
}

// CPUCounters holds cumulative time-in-state totals from the OS. Both
// values only ever grow; rates come from differencing two snapshots.
type CPUCounters struct {
	IdleSeconds  float64
	TotalSeconds float64
}

// MemorySnapshot is an instantaneous memory gauge, no differencing needed.
type MemorySnapshot struct {
	TotalBytes  uint64
	UsedBytes   uint64
	UsedPercent float64
}

// DiskSnapshot is an instantaneous usage gauge for the root filesystem.
type DiskSnapshot struct {
	TotalBytes  uint64
	UsedBytes   uint64
	UsedPercent float64
}

// LoadSnapshot holds the 1/5/15 minute load averages.
type LoadSnapshot struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// InterfaceCounters holds one interface's cumulative traffic counters plus
// its addresses, keyed by interface name in Raw.Interfaces.
type InterfaceCounters struct {
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64

	IPAddress  string
	MACAddress string
}
