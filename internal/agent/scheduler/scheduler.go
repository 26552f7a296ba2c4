// Package scheduler drives the sampling cadence. It is the sole owner of
// the previous raw snapshot, which resets to nil on process start, so the
// first tick after a restart reports gauges without rates.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hostpulse/internal/agent/rates"
	"hostpulse/internal/agent/sampler"
	"hostpulse/pkg/wire"
)

// Source captures one raw snapshot per call.
type Source interface {
	Sample(ctx context.Context) (*sampler.Raw, error)
}

// Sink accepts a derived sample for delivery without blocking.
type Sink interface {
	Offer(sample wire.Sample)
}

// Scheduler ticks at a fixed interval: capture, derive against the held
// previous snapshot, hand off, replace the snapshot. The hand-off is
// non-blocking, so delivery latency never delays the next tick.
type Scheduler struct {
	deviceID string
	interval time.Duration
	source   Source
	sink     Sink
	logger   *zap.Logger

	prev *sampler.Raw
}

// New creates a scheduler for one device.
func New(deviceID string, interval time.Duration, source Source, sink Sink, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		deviceID: deviceID,
		interval: interval,
		source:   source,
		sink:     sink,
		logger:   logger,
	}
}

// Run executes the sampling loop until ctx is cancelled. The first tick
// fires immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Starting sampling loop",
		zap.String("device_id", s.deviceID),
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.Info("Sampling loop stopped")
			return
		}
	}
}

// tick runs one capture/derive/hand-off cycle. The capture gets a timeout
// bounded by the interval so a stuck counter source cannot pile up ticks.
// A cancelled capture skips the tick and keeps the held previous snapshot,
// so the next completed tick still has a baseline to difference against.
func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	captureCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	cur, err := s.source.Sample(captureCtx)
	if err != nil {
		s.logger.Warn("Skipping tick, capture did not complete", zap.Error(err))
		return
	}

	sample := rates.Derive(s.deviceID, s.prev, cur)
	s.sink.Offer(sample)
	s.prev = cur

	s.logger.Debug("Tick completed",
		zap.Duration("capture_time", time.Since(start)),
		zap.Time("timestamp", cur.Timestamp))
}
