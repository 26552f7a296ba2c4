// Package profiler exposes optional pprof endpoints and file profiles for
// the agent and server processes.
package profiler

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"

	"hostpulse/internal/config"
)

// Profiler manages pprof profiling for one process.
type Profiler struct {
	config     config.Profiling
	logger     *zap.Logger
	httpServer *http.Server
	cpuFile    *os.File
}

// New creates a profiler.
func New(cfg config.Profiling, logger *zap.Logger) *Profiler {
	return &Profiler{
		config: cfg,
		logger: logger,
	}
}

// Start begins profiling if enabled.
func (p *Profiler) Start(ctx context.Context) error {
	if !p.config.Enable {
		p.logger.Debug("Profiling disabled")
		return nil
	}

	p.logger.Info("Starting profiler",
		zap.Int("http_port", p.config.HTTPPort),
		zap.String("cpu_profile", p.config.CPUFile),
		zap.String("mem_profile", p.config.MemFile))

	if err := p.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to start pprof HTTP server: %w", err)
	}

	if p.config.CPUFile != "" {
		if err := p.startCPUProfile(); err != nil {
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
	}

	return nil
}

// Stop finishes any file profiles and shuts down the pprof server.
func (p *Profiler) Stop() error {
	if !p.config.Enable {
		return nil
	}

	var errors []error

	if err := p.stopCPUProfile(); err != nil {
		errors = append(errors, fmt.Errorf("failed to stop CPU profiling: %w", err))
	}

	if p.config.MemFile != "" {
		if err := p.writeMemProfile(); err != nil {
			errors = append(errors, fmt.Errorf("failed to write memory profile: %w", err))
		}
	}

	if p.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.httpServer.Shutdown(ctx); err != nil {
			errors = append(errors, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("profiler shutdown errors: %v", errors)
	}

	p.logger.Info("Profiler stopped")
	return nil
}

// startHTTPServer serves the pprof endpoints registered on the default mux.
func (p *Profiler) startHTTPServer(ctx context.Context) error {
	if p.config.HTTPPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", func(w http.ResponseWriter, r *http.Request) {
		http.DefaultServeMux.ServeHTTP(w, r)
	})

	p.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", p.config.HTTPPort),
		Handler: mux,
	}

	go func() {
		p.logger.Info("Starting pprof HTTP server",
			zap.String("addr", p.httpServer.Addr))

		if err := p.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.logger.Error("pprof HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// startCPUProfile begins writing a CPU profile to the configured file.
func (p *Profiler) startCPUProfile() error {
	file, err := os.Create(p.config.CPUFile)
	if err != nil {
		return fmt.Errorf("failed to create CPU profile file: %w", err)
	}

	p.cpuFile = file

	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to start CPU profiling: %w", err)
	}

	p.logger.Info("Started CPU profiling", zap.String("file", p.config.CPUFile))

	if p.config.Duration > 0 {
		go func() {
			time.Sleep(time.Duration(p.config.Duration) * time.Second)
			p.stopCPUProfile()
		}()
	}

	return nil
}

// stopCPUProfile stops a running CPU profile.
func (p *Profiler) stopCPUProfile() error {
	if p.cpuFile == nil {
		return nil
	}

	pprof.StopCPUProfile()

	if err := p.cpuFile.Close(); err != nil {
		return fmt.Errorf("failed to close CPU profile file: %w", err)
	}

	p.logger.Info("Stopped CPU profiling", zap.String("file", p.config.CPUFile))
	p.cpuFile = nil
	return nil
}

// writeMemProfile writes a heap profile to the configured file.
func (p *Profiler) writeMemProfile() error {
	file, err := os.Create(p.config.MemFile)
	if err != nil {
		return fmt.Errorf("failed to create memory profile file: %w", err)
	}
	defer file.Close()

	// Run the GC first so the heap profile reflects live objects.
	runtime.GC()

	if err := pprof.WriteHeapProfile(file); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	p.logger.Info("Written memory profile", zap.String("file", p.config.MemFile))
	return nil
}
