// Package api provides the HTTP server of p8tools. The JSON endpoints live in
// the v1 subpackage.
package api

import (
	"fmt"
	"time"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute // exports run inside the request
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCacheTTL        = 30 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen         string   // host:port to bind
	AllowedOrigins []string // CORS allowed origins

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // maximum request body size, e.g. "1M"

	CacheTTL time.Duration // lifetime of cached node aggregates
	Metrics  bool          // expose /metrics

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
		CacheTTL:        DefaultCacheTTL,
		Metrics:         true,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.WebServer.CacheTTL > 0 {
		cfg.CacheTTL = settings.WebServer.CacheTTL
	}
	cfg.Metrics = settings.WebServer.Metrics
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
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, metrics=%v, debug=%v", c.Listen, c.Metrics, c.Debug)
}
