package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hostpulse/internal/agent/rates"
	"hostpulse/internal/agent/reporter"
	"hostpulse/internal/agent/sampler"
	"hostpulse/internal/server/service"
	"hostpulse/pkg/wire"
)

// Two agent ticks delivered through the real reporter into the real API:
// +2000 rx bytes over 10s must surface as a 200 B/s rate in the stored
// latest state, with last_seen at the second tick.
func TestAgentToCollectorPipeline(t *testing.T) {
	svc := service.New(service.NewMemoryProvider(), time.Hour, zap.NewNop())
	srv := httptest.NewServer(NewHandler(svc, zap.NewNop()).Router())
	defer srv.Close()

	rep := reporter.New(srv.URL+"/api/devices/", time.Second, 3,
		time.Millisecond, 5*time.Millisecond, zap.NewNop())

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := &sampler.Raw{
		Timestamp:  t0,
		Interfaces: map[string]sampler.InterfaceCounters{"eth0": {RxBytes: 1000}},
	}
	second := &sampler.Raw{
		Timestamp:  t0.Add(10 * time.Second),
		Interfaces: map[string]sampler.InterfaceCounters{"eth0": {RxBytes: 3000}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rep.Run(ctx)

	deliver := func(sample wire.Sample) {
		rep.Offer(sample)
		require.Eventually(t, func() bool {
			state, err := svc.Device(ctx, "dev-1")
			return err == nil && state.LastSeen.Equal(sample.Timestamp)
		}, time.Second, 5*time.Millisecond)
	}

	deliver(rates.Derive("dev-1", nil, first))
	deliver(rates.Derive("dev-1", first, second))

	resp, err := http.Get(srv.URL + "/api/devices/dev-1/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data wire.DeviceState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, t0.Add(10*time.Second), body.Data.LastSeen)
	require.Len(t, body.Data.Sample.Network, 1)
	assert.Equal(t, 200.0, body.Data.Sample.Network[0].RxBytesPerSec)
}
