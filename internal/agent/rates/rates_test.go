package rates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostpulse/internal/agent/sampler"
)

func rawAt(t time.Time) *sampler.Raw {
	return &sampler.Raw{Timestamp: t}
}

func TestDeriveFirstTickHasGaugesButNoRates(t *testing.T) {
	uptime := 3600.0
	cur := rawAt(time.Now())
	cur.Uptime = &uptime
	cur.Memory = &sampler.MemorySnapshot{TotalBytes: 8 << 30, UsedBytes: 4 << 30, UsedPercent: 50}
	cur.Disk = &sampler.DiskSnapshot{TotalBytes: 100 << 30, UsedBytes: 30 << 30, UsedPercent: 30}
	cur.Load = &sampler.LoadSnapshot{Load1: 0.5, Load5: 0.4, Load15: 0.3}
	cur.CPU = &sampler.CPUCounters{IdleSeconds: 900, TotalSeconds: 1000}
	cur.Interfaces = map[string]sampler.InterfaceCounters{
		"eth0": {RxBytes: 1000, TxBytes: 500},
	}

	sample := Derive("dev-1", nil, cur)

	assert.Equal(t, "dev-1", sample.DeviceID)
	assert.Equal(t, 3600.0, sample.System.UptimeSeconds)
	assert.Equal(t, 50.0, sample.System.MemoryPercent)
	assert.Equal(t, 30.0, sample.System.DiskPercent)
	assert.Equal(t, 0.5, sample.System.Load1)
	assert.Nil(t, sample.System.CPUUsagePercent, "CPU usage needs a previous snapshot")

	require.Len(t, sample.Network, 1)
	assert.Equal(t, uint64(1000), sample.Network[0].RxBytes)
	assert.Zero(t, sample.Network[0].RxBytesPerSec)
	assert.Zero(t, sample.Network[0].TxBytesPerSec)
}

func TestDeriveNetworkRateFromConsecutiveSamples(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := rawAt(t0)
	prev.Interfaces = map[string]sampler.InterfaceCounters{
		"eth0": {RxBytes: 1000},
	}
	cur := rawAt(t0.Add(10 * time.Second))
	cur.Interfaces = map[string]sampler.InterfaceCounters{
		"eth0": {RxBytes: 3000},
	}

	sample := Derive("dev-1", prev, cur)

	require.Len(t, sample.Network, 1)
	assert.Equal(t, 200.0, sample.Network[0].RxBytesPerSec)
}

func TestDeriveUsesMeasuredElapsedNotConfiguredInterval(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := rawAt(t0)
	prev.Interfaces = map[string]sampler.InterfaceCounters{"eth0": {TxBytes: 0}}
	// Scheduler jitter: the tick fired 2.5s late.
	cur := rawAt(t0.Add(12500 * time.Millisecond))
	cur.Interfaces = map[string]sampler.InterfaceCounters{"eth0": {TxBytes: 2500}}

	sample := Derive("dev-1", prev, cur)

	require.Len(t, sample.Network, 1)
	assert.Equal(t, 200.0, sample.Network[0].TxBytesPerSec)
}

func TestDeriveCounterResetYieldsZeroRate(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := rawAt(t0)
	prev.Interfaces = map[string]sampler.InterfaceCounters{
		"eth0": {RxBytes: 5000, TxBytes: 9000, RxPackets: 100, TxPackets: 900},
	}
	cur := rawAt(t0.Add(10 * time.Second))
	cur.Interfaces = map[string]sampler.InterfaceCounters{
		"eth0": {RxBytes: 120, TxBytes: 10000, RxPackets: 3, TxPackets: 950},
	}

	sample := Derive("dev-1", prev, cur)

	require.Len(t, sample.Network, 1)
	assert.Zero(t, sample.Network[0].RxBytesPerSec, "wrapped counter must not go negative")
	assert.Zero(t, sample.Network[0].RxPacketsPerSec)
	assert.Equal(t, 100.0, sample.Network[0].TxBytesPerSec, "untouched counters still produce rates")
	assert.Equal(t, 5.0, sample.Network[0].TxPacketsPerSec)
}

func TestDeriveInterfaceAppearingMidFlightHasZeroRates(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := rawAt(t0)
	prev.Interfaces = map[string]sampler.InterfaceCounters{"eth0": {RxBytes: 100}}
	cur := rawAt(t0.Add(10 * time.Second))
	cur.Interfaces = map[string]sampler.InterfaceCounters{
		"eth0": {RxBytes: 200},
		"wlan0": {RxBytes: 700},
	}

	sample := Derive("dev-1", prev, cur)

	require.Len(t, sample.Network, 2)
	assert.Equal(t, "eth0", sample.Network[0].Name)
	assert.Equal(t, 10.0, sample.Network[0].RxBytesPerSec)
	assert.Equal(t, "wlan0", sample.Network[1].Name)
	assert.Zero(t, sample.Network[1].RxBytesPerSec)
}

func TestCPUPercentWithinBounds(t *testing.T) {
	testCases := []struct {
		name     string
		prev     sampler.CPUCounters
		cur      sampler.CPUCounters
		expected *float64
	}{
		{
			name:     "half busy",
			prev:     sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1000},
			cur:      sampler.CPUCounters{IdleSeconds: 105, TotalSeconds: 1010},
			expected: ptr(50.0),
		},
		{
			name:     "fully idle",
			prev:     sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1000},
			cur:      sampler.CPUCounters{IdleSeconds: 110, TotalSeconds: 1010},
			expected: ptr(0.0),
		},
		{
			name:     "fully busy",
			prev:     sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1000},
			cur:      sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1010},
			expected: ptr(100.0),
		},
		{
			name:     "no progress",
			prev:     sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1000},
			cur:      sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1000},
			expected: nil,
		},
		{
			name:     "counter reset",
			prev:     sampler.CPUCounters{IdleSeconds: 100, TotalSeconds: 1000},
			cur:      sampler.CPUCounters{IdleSeconds: 2, TotalSeconds: 20},
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := cpuPercent(&tc.prev, &tc.cur)
			if tc.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tc.expected, *got, 1e-9)
			assert.GreaterOrEqual(t, *got, 0.0)
			assert.LessOrEqual(t, *got, 100.0)
		})
	}
}

func TestCounterRateNeverNegative(t *testing.T) {
	assert.Equal(t, 0.0, counterRate(100, 50, 10))
	assert.Equal(t, 0.0, counterRate(100, 100, 10))
	assert.Equal(t, 5.0, counterRate(100, 150, 10))
}

func ptr(f float64) *float64 { return &f }
