// Package config loads agent and server configuration from environment
// variables and command line flags. Flags win over environment values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Profiling holds the optional pprof settings shared by both commands.
type Profiling struct {
	Enable   bool
	HTTPPort int
	CPUFile  string
	MemFile  string
	Duration int
}

// Agent configures the sampling agent.
type Agent struct {
	CollectorURL string
	Interval     time.Duration

	// HTTP delivery settings
	HTTPTimeout     time.Duration
	MaxRetries      int
	RetryBackoffMin time.Duration
	RetryBackoffMax time.Duration

	// StatePath stores the generated device ID fallback.
	StatePath string

	LogLevel  string
	Profiling Profiling
}

// Server configures the collector.
type Server struct {
	ListenAddr string
	DBPath     string

	// FreshnessThreshold is the maximum sample age for a device to be
	// reported online.
	FreshnessThreshold time.Duration

	LogLevel  string
	Profiling Profiling
}

// NewAgent returns an agent configuration with defaults.
func NewAgent() *Agent {
	return &Agent{
		CollectorURL:    "http://localhost:8000/api/devices/",
		Interval:        10 * time.Second,
		HTTPTimeout:     30 * time.Second,
		MaxRetries:      5,
		RetryBackoffMin: 1 * time.Second,
		RetryBackoffMax: 30 * time.Second,
		StatePath:       "/var/lib/hostpulse/device_id",
		LogLevel:        "info",
		Profiling: Profiling{
			HTTPPort: 6060,
			Duration: 30,
		},
	}
}

// NewServer returns a server configuration with defaults.
func NewServer() *Server {
	return &Server{
		ListenAddr:         ":8000",
		DBPath:             "hostpulse.db",
		FreshnessThreshold: time.Minute,
		LogLevel:           "info",
		Profiling: Profiling{
			HTTPPort: 6061,
			Duration: 30,
		},
	}
}

// Load fills the agent configuration from environment and flags, then
// validates it.
func (c *Agent) Load(cmd *cobra.Command) error {
	c.loadFromEnv()

	if cmd.Flags().Changed("collector-url") {
		c.CollectorURL, _ = cmd.Flags().GetString("collector-url")
	}
	if cmd.Flags().Changed("interval") {
		intervalSec, _ := cmd.Flags().GetInt("interval")
		c.Interval = time.Duration(intervalSec) * time.Second
	}
	if cmd.Flags().Changed("http-timeout") {
		timeoutSec, _ := cmd.Flags().GetInt("http-timeout")
		c.HTTPTimeout = time.Duration(timeoutSec) * time.Second
	}
	if cmd.Flags().Changed("max-retries") {
		c.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
	}
	if cmd.Flags().Changed("retry-backoff-min") {
		backoffSec, _ := cmd.Flags().GetInt("retry-backoff-min")
		c.RetryBackoffMin = time.Duration(backoffSec) * time.Second
	}
	if cmd.Flags().Changed("retry-backoff-max") {
		backoffSec, _ := cmd.Flags().GetInt("retry-backoff-max")
		c.RetryBackoffMax = time.Duration(backoffSec) * time.Second
	}
	if cmd.Flags().Changed("state-path") {
		c.StatePath, _ = cmd.Flags().GetString("state-path")
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	c.Profiling.load(cmd)

	return c.Validate()
}

// loadFromEnv loads agent settings from environment variables.
func (c *Agent) loadFromEnv() {
	if url := os.Getenv("HOSTPULSE_COLLECTOR_URL"); url != "" {
		c.CollectorURL = url
	}
	if intervalStr := os.Getenv("HOSTPULSE_INTERVAL"); intervalStr != "" {
		if intervalSec, err := strconv.Atoi(intervalStr); err == nil {
			c.Interval = time.Duration(intervalSec) * time.Second
		}
	}
	if timeoutStr := os.Getenv("HOSTPULSE_HTTP_TIMEOUT"); timeoutStr != "" {
		if timeoutSec, err := strconv.Atoi(timeoutStr); err == nil {
			c.HTTPTimeout = time.Duration(timeoutSec) * time.Second
		}
	}
	if retriesStr := os.Getenv("HOSTPULSE_MAX_RETRIES"); retriesStr != "" {
		if retries, err := strconv.Atoi(retriesStr); err == nil {
			c.MaxRetries = retries
		}
	}
	if backoffStr := os.Getenv("HOSTPULSE_RETRY_BACKOFF_MIN"); backoffStr != "" {
		if backoffSec, err := strconv.Atoi(backoffStr); err == nil {
			c.RetryBackoffMin = time.Duration(backoffSec) * time.Second
		}
	}
	if backoffStr := os.Getenv("HOSTPULSE_RETRY_BACKOFF_MAX"); backoffStr != "" {
		if backoffSec, err := strconv.Atoi(backoffStr); err == nil {
			c.RetryBackoffMax = time.Duration(backoffSec) * time.Second
		}
	}
	if statePath := os.Getenv("HOSTPULSE_STATE_PATH"); statePath != "" {
		c.StatePath = statePath
	}
	if logLevel := os.Getenv("HOSTPULSE_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	c.Profiling.loadFromEnv()
}

// Validate checks the agent configuration.
func (c *Agent) Validate() error {
	if c.CollectorURL == "" {
		return fmt.Errorf("collector URL is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryBackoffMin <= 0 || c.RetryBackoffMax < c.RetryBackoffMin {
		return fmt.Errorf("invalid retry backoff bounds")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return c.Profiling.validate()
}

// Load fills the server configuration from environment and flags, then
// validates it.
func (c *Server) Load(cmd *cobra.Command) error {
	c.loadFromEnv()

	if cmd.Flags().Changed("listen") {
		c.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("db") {
		c.DBPath, _ = cmd.Flags().GetString("db")
	}
	if cmd.Flags().Changed("freshness-threshold") {
		thresholdSec, _ := cmd.Flags().GetInt("freshness-threshold")
		c.FreshnessThreshold = time.Duration(thresholdSec) * time.Second
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	c.Profiling.load(cmd)

	return c.Validate()
}

// loadFromEnv loads server settings from environment variables.
func (c *Server) loadFromEnv() {
	if addr := os.Getenv("HOSTPULSE_LISTEN"); addr != "" {
		c.ListenAddr = addr
	}
	if dbPath := os.Getenv("HOSTPULSE_DB"); dbPath != "" {
		c.DBPath = dbPath
	}
	if thresholdStr := os.Getenv("HOSTPULSE_FRESHNESS_THRESHOLD"); thresholdStr != "" {
		if thresholdSec, err := strconv.Atoi(thresholdStr); err == nil {
			c.FreshnessThreshold = time.Duration(thresholdSec) * time.Second
		}
	}
	if logLevel := os.Getenv("HOSTPULSE_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	c.Profiling.loadFromEnv()
}

// Validate checks the server configuration.
func (c *Server) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.FreshnessThreshold <= 0 {
		return fmt.Errorf("freshness threshold must be positive")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return c.Profiling.validate()
}

func (p *Profiling) load(cmd *cobra.Command) {
	if cmd.Flags().Changed("profile") {
		p.Enable, _ = cmd.Flags().GetBool("profile")
	}
	if cmd.Flags().Changed("profile-http-port") {
		p.HTTPPort, _ = cmd.Flags().GetInt("profile-http-port")
	}
	if cmd.Flags().Changed("profile-cpu") {
		p.CPUFile, _ = cmd.Flags().GetString("profile-cpu")
	}
	if cmd.Flags().Changed("profile-mem") {
		p.MemFile, _ = cmd.Flags().GetString("profile-mem")
	}
	if cmd.Flags().Changed("profile-time") {
		p.Duration, _ = cmd.Flags().GetInt("profile-time")
	}
}

func (p *Profiling) loadFromEnv() {
	if profileStr := os.Getenv("HOSTPULSE_PROFILE_ENABLE"); profileStr != "" {
		if profile, err := strconv.ParseBool(profileStr); err == nil {
			p.Enable = profile
		}
	}
	if portStr := os.Getenv("HOSTPULSE_PROFILE_HTTP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			p.HTTPPort = port
		}
	}
	if cpuFile := os.Getenv("HOSTPULSE_PROFILE_CPU_FILE"); cpuFile != "" {
		p.CPUFile = cpuFile
	}
	if memFile := os.Getenv("HOSTPULSE_PROFILE_MEM_FILE"); memFile != "" {
		p.MemFile = memFile
	}
	if durationStr := os.Getenv("HOSTPULSE_PROFILE_TIME"); durationStr != "" {
		if duration, err := strconv.Atoi(durationStr); err == nil {
			p.Duration = duration
		}
	}
}

func (p *Profiling) validate() error {
	if !p.Enable {
		return nil
	}
	if p.HTTPPort <= 0 || p.HTTPPort > 65535 {
		return fmt.Errorf("invalid profile HTTP port: %d", p.HTTPPort)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("profile time must be positive")
	}
	return nil
}

// AddAgentFlags registers agent flags on a cobra command.
func AddAgentFlags(cmd *cobra.Command) {
	cmd.Flags().String("collector-url", "", "Collector devices endpoint URL")
	cmd.Flags().Int("interval", 10, "Sampling interval in seconds")
	cmd.Flags().Int("http-timeout", 30, "HTTP timeout in seconds")
	cmd.Flags().Int("max-retries", 5, "Delivery attempts per sample")
	cmd.Flags().Int("retry-backoff-min", 1, "Initial retry backoff in seconds")
	cmd.Flags().Int("retry-backoff-max", 30, "Maximum retry backoff in seconds")
	cmd.Flags().String("state-path", "", "Path for the persisted device ID")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	addProfilingFlags(cmd)
}

// AddServerFlags registers server flags on a cobra command.
func AddServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen", "", "HTTP listen address")
	cmd.Flags().String("db", "", "Path to the device database")
	cmd.Flags().Int("freshness-threshold", 60, "Online/offline threshold in seconds")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	addProfilingFlags(cmd)
}

func addProfilingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("profile", false, "Enable profiling")
	cmd.Flags().Int("profile-http-port", 0, "HTTP port for pprof endpoints")
	cmd.Flags().String("profile-cpu", "", "CPU profile output file")
	cmd.Flags().String("profile-mem", "", "Memory profile output file")
	cmd.Flags().Int("profile-time", 30, "CPU profile duration in seconds")
}
