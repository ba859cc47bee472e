package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath      string
	SeedCSVPath string

	// Server settings
	ServerHost string
	ServerPort int
	FreeAPIKey string
	ProAPIKey  string

	// Stream health settings
	SweepInterval time.Duration
	ProbeTimeout  time.Duration
	SweepWorkers  int

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
// API keys and the log level come from the environment; only the log
// level also has a flag.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)
	logLevel = GetEnvLogLevel("CATALOG_LOG_LEVEL", logLevel)

	return &Config{
		DBPath:        DefaultDBPath,
		SeedCSVPath:   DefaultSeedCSVPath,
		ServerHost:    DefaultServerHost,
		ServerPort:    DefaultServerPort,
		FreeAPIKey:    GetEnvString("CATALOG_FREE_API_KEY", ""),
		ProAPIKey:     GetEnvString("CATALOG_PRO_API_KEY", ""),
		SweepInterval: time.Duration(DefaultSweepIntervalSec) * time.Second,
		ProbeTimeout:  time.Duration(DefaultProbeTimeoutSec) * time.Second,
		SweepWorkers:  DefaultSweepWorkers,
		LogLevel:      logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
