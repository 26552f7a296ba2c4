// Package sampler reads raw OS counters and gauges for one tick. It knows
// nothing about rates or deltas; differencing happens in the rates package.
package sampler

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

// Sampler captures Raw snapshots from OS instrumentation.
type Sampler struct {
	logger *zap.Logger
}

// New creates a new sampler.
func New(logger *zap.Logger) *Sampler {
	return &Sampler{
		logger: logger,
	}
}

// Sample captures all counter sources in parallel. A source that cannot be
// read leaves its section nil and logs a warning; an unreadable counter
// costs one field for one tick, not the whole pipeline. The only way a
// tick fails is cancellation, and then the partial snapshot is discarded:
// collection goroutines may still be writing it, so it must never escape.
func (s *Sampler) Sample(ctx context.Context) (*Raw, error) {
	s.logger.Debug("Starting counter capture")

	raw := &Raw{
		Timestamp: time.Now().UTC(),
	}

	type result struct {
		name string
		err  error
	}

	results := make(chan result, 4)

	go func() {
		cpuCounters, err := s.sampleCPU(ctx)
		if err == nil {
			raw.CPU = cpuCounters
		}
		loadAvg, loadErr := load.AvgWithContext(ctx)
		if loadErr == nil {
			raw.Load = &LoadSnapshot{Load1: loadAvg.Load1, Load5: loadAvg.Load5, Load15: loadAvg.Load15}
		} else {
			s.logger.Warn("Failed to read load averages", zap.Error(loadErr))
		}
		results <- result{name: "CPU", err: err}
	}()

	go func() {
		vmStat, err := mem.VirtualMemoryWithContext(ctx)
		if err == nil {
			raw.Memory = &MemorySnapshot{
				TotalBytes:  vmStat.Total,
				UsedBytes:   vmStat.Total - vmStat.Available,
				UsedPercent: vmStat.UsedPercent,
			}
		}
		results <- result{name: "Memory", err: err}
	}()

	go func() {
		diskStat, err := disk.UsageWithContext(ctx, "/")
		if err == nil {
			raw.Disk = &DiskSnapshot{
				TotalBytes:  diskStat.Total,
				UsedBytes:   diskStat.Used,
				UsedPercent: diskStat.UsedPercent,
			}
		}
		uptime, uptimeErr := host.UptimeWithContext(ctx)
		if uptimeErr == nil {
			seconds := float64(uptime)
			raw.Uptime = &seconds
		} else {
			s.logger.Warn("Failed to read uptime", zap.Error(uptimeErr))
		}
		results <- result{name: "Disk", err: err}
	}()

	go func() {
		interfaces, err := s.sampleInterfaces(ctx)
		if err == nil {
			raw.Interfaces = interfaces
		}
		results <- result{name: "Network", err: err}
	}()

	errors := 0
	for i := 0; i < 4; i++ {
		if ctx.Err() != nil {
			s.logger.Warn("Counter capture cancelled", zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
		select {
		case res := <-results:
			if res.err != nil {
				errors++
				s.logger.Warn("Failed to capture counters",
					zap.String("source", res.name),
					zap.Error(res.err))
			}
		case <-ctx.Done():
			s.logger.Warn("Counter capture cancelled", zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
	}

	s.logger.Debug("Counter capture completed",
		zap.Int("errors", errors),
		zap.Time("timestamp", raw.Timestamp))

	return raw, nil
}

// sampleCPU reads the host-wide cumulative CPU time buckets.
func (s *Sampler) sampleCPU(ctx context.Context) (*CPUCounters, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}

	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq +
		t.Softirq + t.Steal + t.Guest + t.GuestNice

	return &CPUCounters{
		IdleSeconds:  t.Idle,
		TotalSeconds: total,
	}, nil
}

// sampleInterfaces reads per-interface cumulative traffic counters and
// attaches IP/MAC addresses where the OS exposes them. Loopback and
// interfaces that are down are skipped.
func (s *Sampler) sampleInterfaces(ctx context.Context) (map[string]InterfaceCounters, error) {
	ioStats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	addresses := map[string]struct{ ip, mac string }{}
	if ifaces, err := net.InterfacesWithContext(ctx); err == nil {
		for _, iface := range ifaces {
			var ip string
			for _, addr := range iface.Addrs {
				ip = strings.SplitN(addr.Addr, "/", 2)[0]
				break
			}
			addresses[iface.Name] = struct{ ip, mac string }{ip, iface.HardwareAddr}
		}
	} else {
		s.logger.Warn("Failed to read interface addresses", zap.Error(err))
	}

	counters := make(map[string]InterfaceCounters, len(ioStats))
	for _, stat := range ioStats {
		if stat.Name == "lo" || strings.HasPrefix(stat.Name, "lo0") {
			continue
		}
		c := InterfaceCounters{
			RxBytes:   stat.BytesRecv,
			TxBytes:   stat.BytesSent,
			RxPackets: stat.PacketsRecv,
			TxPackets: stat.PacketsSent,
		}
		if addr, ok := addresses[stat.Name]; ok {
			c.IPAddress = addr.ip
			c.MACAddress = addr.mac
		}
		counters[stat.Name] = c
	}

	return counters, nil
}
