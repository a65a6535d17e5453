// Package api provides the HTTP job API that runs extractions in the background.
package api

import (
	"fmt"
	"time"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultJobTTL          = time.Hour
	DefaultMaxJobs         = 2
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port to listen on

	// Security settings
	AllowedOrigins []string // CORS allowed origins

	// Timeouts
	ReadTimeout     time.Duration // Maximum duration for reading request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum time to wait for next request
	ShutdownTimeout time.Duration // Maximum time to wait for graceful shutdown

	// Limits
	BodyLimit string        // Maximum request body size (e.g., "1M", "10M")
	JobTTL    time.Duration // how long finished jobs stay queryable
	MaxJobs   int           // concurrently running jobs

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       "1M",
		JobTTL:          DefaultJobTTL,
		MaxJobs:         DefaultMaxJobs,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.Server.Listen != "" {
		cfg.Listen = settings.Server.Listen
	}
	if settings.Server.JobTTL > 0 {
		cfg.JobTTL = settings.Server.JobTTL
	}
	if settings.Server.MaxJobs > 0 {
		cfg.MaxJobs = settings.Server.MaxJobs
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("job TTL must be positive")
	}
	if c.MaxJobs <= 0 {
		return fmt.Errorf("max jobs must be positive")
	}
	return nil
}
