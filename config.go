package rpcfixture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the fixture's fixed behaviour when no config file is given.
const (
	DefaultAddr          = ":8080"
	DefaultWatchdog      = 6 * time.Second
	DefaultShutdownDelay = 1 * time.Second
	DefaultLogLevel      = "info"
)

// Configuration validation errors.
var (
	ErrMissingAddr           = errors.New("addr is required")
	ErrNegativeWatchdog      = errors.New("watchdog must be non-negative")
	ErrNegativeShutdownDelay = errors.New("shutdown_delay must be non-negative")
	ErrInvalidLogLevel       = errors.New("log_level must be one of: debug, info, warn, error")
)

// Config holds the fixture settings. A zero Watchdog or ShutdownDelay
// disables that timer.
type Config struct {
	Addr          string        `yaml:"addr"`
	Watchdog      time.Duration `yaml:"watchdog"`
	ShutdownDelay time.Duration `yaml:"shutdown_delay"`
	LogLevel      string        `yaml:"log_level"`
}

// DefaultConfig returns the fixture defaults: listen on :8080, stop after 6s
// without a call and 1s after a successful call.
func DefaultConfig() Config {
	return Config{
		Addr:          DefaultAddr,
		Watchdog:      DefaultWatchdog,
		ShutdownDelay: DefaultShutdownDelay,
		LogLevel:      DefaultLogLevel,
	}
}

// LoadConfig reads a YAML config file. Keys absent from the file keep their
// default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.Addr == "" {
		return ErrMissingAddr
	}
	if c.Watchdog < 0 {
		return ErrNegativeWatchdog
	}
	if c.ShutdownDelay < 0 {
		return ErrNegativeShutdownDelay
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// NewLogger returns a text logger writing to w at the configured level.
// Unknown levels fall back to info.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, ok := parseLevel(c.LogLevel)
	if !ok {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
