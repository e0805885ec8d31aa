// Package config loads process configuration from the environment and builds
// the process logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort               = 8080
	DefaultUpstreamTimeout    = 10 * time.Second
	DefaultSessionIdleTimeout = 30 * time.Minute
)

// Config is the process configuration.
type Config struct {
	Port       int
	Production bool
	LogLevel   slog.Level

	// SessionIdleTimeout closes sessions that see no requests for this long.
	// Zero disables it.
	SessionIdleTimeout time.Duration
	UpstreamTimeout    time.Duration

	levelSet bool
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:            DefaultPort,
		Production:      isProduction(getenv("APP_ENV")) || isProduction(getenv("NODE_ENV")),
		UpstreamTimeout: DefaultUpstreamTimeout,
	}
	cfg.LogLevel = cfg.defaultLevel()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.SetLogLevel(level)
	}

	var err error
	if cfg.SessionIdleTimeout, err = duration(getenv, "SESSION_IDLE_TIMEOUT", DefaultSessionIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = duration(getenv, "UPSTREAM_TIMEOUT", cfg.UpstreamTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("session idle timeout must not be negative, got %s", c.SessionIdleTimeout)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %s", c.UpstreamTimeout)
	}
	return nil
}

// BindHost is all interfaces in production and loopback otherwise.
func (c *Config) BindHost() string {
	if c.Production {
		return "0.0.0.0"
	}
	return "127.0.0.1"
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindHost(), c.Port)
}

// NewLogger writes JSON in production and text otherwise.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.Production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetProduction switches mode and moves the log level along with it unless
// one was chosen explicitly.
func (c *Config) SetProduction(production bool) {
	c.Production = production
	if !c.levelSet {
		c.LogLevel = c.defaultLevel()
	}
}

// SetLogLevel pins the log level regardless of mode.
func (c *Config) SetLogLevel(level slog.Level) {
	c.LogLevel = level
	c.levelSet = true
}

func (c *Config) defaultLevel() slog.Level {
	if c.Production {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func isProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
