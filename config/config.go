// Package config handles engine configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the privilege authorization engine.
// The enclosing platform loads it once and passes it to authz.Open.
type Config struct {
	DBPath string // path to the SQLite privilege store file

	// CacheTTL is the staleness bound: every grant/revoke becomes
	// observable to all enforcement checks within this window.
	CacheTTL time.Duration

	CacheMaxEntries    int           // per-principal entries held before eviction
	CacheSweepInterval time.Duration // janitor interval; 0 disables the janitor

	// Pacing for bulk wildcard/transfer operations.
	TransferRPS   float64
	TransferBurst int

	LogLevel string // debug, info, warn, error (default "info")
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DBPath must be set")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CacheTTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CacheMaxEntries must be positive, got %d", c.CacheMaxEntries)
	}
	if c.TransferRPS <= 0 {
		return fmt.Errorf("TransferRPS must be positive, got %g", c.TransferRPS)
	}
	// A finite rate with burst 0 makes the limiter reject every wait.
	if c.TransferBurst < 1 {
		return fmt.Errorf("TransferBurst must be at least 1, got %d", c.TransferBurst)
	}
	return nil
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		DBPath:             "lakeguard_authz.sqlite",
		CacheTTL:           10 * time.Second,
		CacheMaxEntries:    1024,
		CacheSweepInterval: time.Minute,
		TransferRPS:        200,
		TransferBurst:      400,
		LogLevel:           "info",
	}
}

// LoadFromEnv loads configuration from environment variables, applying
// defaults for anything unset.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("AUTHZ_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AUTHZ_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse AUTHZ_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv("AUTHZ_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse AUTHZ_CACHE_MAX_ENTRIES: %w", err)
		}
		cfg.CacheMaxEntries = n
	}
	if v := os.Getenv("AUTHZ_CACHE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse AUTHZ_CACHE_SWEEP_INTERVAL: %w", err)
		}
		cfg.CacheSweepInterval = d
	}
	if v := os.Getenv("AUTHZ_TRANSFER_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse AUTHZ_TRANSFER_RPS: %w", err)
		}
		cfg.TransferRPS = f
	}
	if v := os.Getenv("AUTHZ_TRANSFER_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse AUTHZ_TRANSFER_BURST: %w", err)
		}
		cfg.TransferBurst = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
