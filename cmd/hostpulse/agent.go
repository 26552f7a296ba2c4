package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"hostpulse/internal/agent/reporter"
	"hostpulse/internal/agent/sampler"
	"hostpulse/internal/agent/scheduler"
	"hostpulse/internal/config"
	"hostpulse/internal/logger"
	"hostpulse/pkg/deviceid"
	"hostpulse/pkg/profiler"
)

// runAgent wires the sampling pipeline: scheduler ticks feed the reporter
// through a non-blocking hand-off, so delivery retries never delay a tick.
func runAgent(cfg *config.Agent) error {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deviceID, err := deviceid.Resolve(cfg.StatePath, log)
	if err != nil {
		return fmt.Errorf("failed to resolve device ID: %w", err)
	}

	prof := profiler.New(cfg.Profiling, log)
	if err := prof.Start(ctx); err != nil {
		return err
	}
	defer prof.Stop()

	rep := reporter.New(cfg.CollectorURL, cfg.HTTPTimeout, cfg.MaxRetries,
		cfg.RetryBackoffMin, cfg.RetryBackoffMax, log)
	sched := scheduler.New(deviceID, cfg.Interval, sampler.New(log), rep, log)

	log.Info("Starting agent",
		zap.String("device_id", deviceID),
		zap.String("collector_url", cfg.CollectorURL),
		zap.Duration("interval", cfg.Interval))

	go rep.Run(ctx)
	sched.Run(ctx)

	log.Info("Agent stopped")
	return nil
}
