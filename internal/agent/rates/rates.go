// Package rates turns two consecutive raw counter snapshots into the wire
// sample the agent reports. All functions are pure; the scheduler owns the
// previous snapshot and passes it in.
package rates

import (
	"sort"

	"hostpulse/internal/agent/sampler"
	"hostpulse/pkg/wire"
)

// Derive builds a wire.Sample from the current snapshot, differencing
// counter sources against prev. With a nil prev (first tick after process
// start) the instantaneous gauges are still populated but CPU usage is
// absent and all throughput rates are zero for that tick.
func Derive(deviceID string, prev, cur *sampler.Raw) wire.Sample {
	sample := wire.Sample{
		DeviceID:  deviceID,
		Timestamp: cur.Timestamp,
	}

	if cur.Uptime != nil {
		sample.System.UptimeSeconds = *cur.Uptime
	}
	if cur.Memory != nil {
		sample.System.MemoryPercent = cur.Memory.UsedPercent
		sample.System.MemoryUsedKB = cur.Memory.UsedBytes / 1024
	}
	if cur.Disk != nil {
		sample.System.DiskPercent = cur.Disk.UsedPercent
		sample.System.DiskUsedKB = cur.Disk.UsedBytes / 1024
	}
	if cur.Load != nil {
		sample.System.Load1 = cur.Load.Load1
		sample.System.Load5 = cur.Load.Load5
		sample.System.Load15 = cur.Load.Load15
	}

	// Elapsed time comes from the captured timestamps, not the configured
	// tick interval, so scheduler jitter does not skew the rates.
	var elapsed float64
	if prev != nil {
		elapsed = cur.Timestamp.Sub(prev.Timestamp).Seconds()
	}

	if prev != nil && prev.CPU != nil && cur.CPU != nil {
		sample.System.CPUUsagePercent = cpuPercent(prev.CPU, cur.CPU)
	}

	sample.Network = interfaceMetrics(prev, cur, elapsed)

	return sample
}

// cpuPercent computes utilization over the interval between two cumulative
// time-in-state snapshots, clamped to [0, 100]. Returns nil when the
// counters went backwards (reset) or did not advance.
func cpuPercent(prev, cur *sampler.CPUCounters) *float64 {
	totalDelta := cur.TotalSeconds - prev.TotalSeconds
	idleDelta := cur.IdleSeconds - prev.IdleSeconds

	if totalDelta <= 0 || idleDelta < 0 {
		return nil
	}

	usage := 100.0 * (1.0 - idleDelta/totalDelta)
	if usage < 0 {
		usage = 0
	}
	if usage > 100 {
		usage = 100
	}
	return &usage
}

// interfaceMetrics emits one entry per interface present in the current
// snapshot, sorted by name for a stable payload. Rates require the
// interface to exist in both snapshots with non-decreasing counters and a
// positive elapsed interval; anything else yields zero, never a negative.
func interfaceMetrics(prev, cur *sampler.Raw, elapsed float64) []wire.InterfaceMetrics {
	if len(cur.Interfaces) == 0 {
		return nil
	}

	names := make([]string, 0, len(cur.Interfaces))
	for name := range cur.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	metrics := make([]wire.InterfaceMetrics, 0, len(names))
	for _, name := range names {
		c := cur.Interfaces[name]
		m := wire.InterfaceMetrics{
			Name:       name,
			IPAddress:  c.IPAddress,
			MACAddress: c.MACAddress,
			RxBytes:    c.RxBytes,
			TxBytes:    c.TxBytes,
			RxPackets:  c.RxPackets,
			TxPackets:  c.TxPackets,
		}

		if prev != nil && elapsed > 0 {
			if p, ok := prev.Interfaces[name]; ok {
				m.RxBytesPerSec = counterRate(p.RxBytes, c.RxBytes, elapsed)
				m.TxBytesPerSec = counterRate(p.TxBytes, c.TxBytes, elapsed)
				m.RxPacketsPerSec = counterRate(p.RxPackets, c.RxPackets, elapsed)
				m.TxPacketsPerSec = counterRate(p.TxPackets, c.TxPackets, elapsed)
			}
		}

		metrics = append(metrics, m)
	}

	return metrics
}

// counterRate is the per-second rate between two cumulative counter reads.
// A current value below the previous one means the counter wrapped or the
// interface reset; the delta is undefined for that tick, so the rate is
// zero.
func counterRate(prev, cur uint64, elapsed float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / elapsed
}
