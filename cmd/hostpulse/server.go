package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hostpulse/internal/config"
	"hostpulse/internal/logger"
	"hostpulse/internal/server/api"
	"hostpulse/internal/server/service"
	"hostpulse/internal/server/store"
	"hostpulse/pkg/profiler"
)

// runServer wires the collector: sqlite latest-state store, ingestion
// service and the HTTP API, shut down gracefully on SIGINT/SIGTERM.
func runServer(cfg *config.Server) error {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prof := profiler.New(cfg.Profiling, log)
	if err := prof.Start(ctx); err != nil {
		return err
	}
	defer prof.Stop()

	provider, err := store.NewSqliteProvider(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer provider.Close()

	svc := service.New(provider, cfg.FreshnessThreshold, log)
	handler := api.NewHandler(svc, log)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting collector",
			zap.String("listen", cfg.ListenAddr),
			zap.String("db", cfg.DBPath),
			zap.Duration("freshness_threshold", cfg.FreshnessThreshold))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("collector HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down collector: %w", err)
	}

	log.Info("Collector stopped")
	return nil
}
