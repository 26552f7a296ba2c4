package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hostpulse/pkg/wire"
)

func newTestProvider(t *testing.T) *SqliteProvider {
	t.Helper()
	p, err := NewSqliteProvider(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func sampleFor(deviceID string, ts time.Time, rxRate float64) wire.Sample {
	cpu := 42.5
	return wire.Sample{
		DeviceID:  deviceID,
		Timestamp: ts,
		System: wire.SystemMetrics{
			UptimeSeconds:   3600,
			CPUUsagePercent: &cpu,
			MemoryPercent:   51.2,
			MemoryUsedKB:    4194304,
			DiskPercent:     30.1,
			DiskUsedKB:      31457280,
			Load1:           0.42,
			Load5:           0.40,
			Load15:          0.35,
		},
		Network: []wire.InterfaceMetrics{
			{Name: "eth0", RxBytes: 3000, RxBytesPerSec: rxRate},
		},
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	applied, err := p.Upsert(ctx, sampleFor("dev-1", t0, 0))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = p.Upsert(ctx, sampleFor("dev-1", t0.Add(10*time.Second), 200))
	require.NoError(t, err)
	assert.True(t, applied)

	state, err := p.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, t0, state.FirstSeen, "first_seen keeps the original ingestion")
	assert.Equal(t, t0.Add(10*time.Second), state.LastSeen)
	require.Len(t, state.Sample.Network, 1)
	assert.Equal(t, 200.0, state.Sample.Network[0].RxBytesPerSec)
	require.NotNil(t, state.Sample.System.CPUUsagePercent)
	assert.Equal(t, 42.5, *state.Sample.System.CPUUsagePercent)
}

func TestUpsertIgnoresOutOfOrderSample(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	applied, err := p.Upsert(ctx, sampleFor("dev-1", t0.Add(10*time.Second), 200))
	require.NoError(t, err)
	require.True(t, applied)

	// A delayed retry of an older sample arrives after the newer one.
	applied, err = p.Upsert(ctx, sampleFor("dev-1", t0, 999))
	require.NoError(t, err)
	assert.False(t, applied, "older sample must not overwrite newer state")

	state, err := p.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Second), state.LastSeen, "last_seen must not regress")
	assert.Equal(t, 200.0, state.Sample.Network[0].RxBytesPerSec)
}

func TestUpsertDuplicateIsIdempotent(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	sample := sampleFor("dev-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 200)

	_, err := p.Upsert(ctx, sample)
	require.NoError(t, err)
	first, err := p.Get(ctx, "dev-1")
	require.NoError(t, err)

	_, err = p.Upsert(ctx, sample)
	require.NoError(t, err)
	second, err := p.Get(ctx, "dev-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetUnknownDevice(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := p.Exists(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListReturnsAllDevices(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := p.Upsert(ctx, sampleFor("dev-b", t0, 1))
	require.NoError(t, err)
	_, err = p.Upsert(ctx, sampleFor("dev-a", t0, 2))
	require.NoError(t, err)

	states, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "dev-a", states[0].DeviceID)
	assert.Equal(t, "dev-b", states[1].DeviceID)
}
