// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN used by every repository.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MaxDevices is the per-user cap on concurrently active sessions (default 2).
	MaxDevices int `mapstructure:"SESSION_MAX_DEVICES"`
	// SessionDuration is the session lifetime from creation to expiry (e.g. "24h").
	SessionDuration string `mapstructure:"SESSION_DURATION"`
	// HeartbeatInterval is how often a connected client reports liveness (e.g. "5m").
	HeartbeatInterval string `mapstructure:"SESSION_HEARTBEAT_INTERVAL"`
	// WarningWindow is how long before expiry the one-shot warning fires (e.g. "5m").
	WarningWindow string `mapstructure:"SESSION_WARNING_WINDOW"`
	// ExpiryCheckInterval is the tick of the per-session expiry loop (e.g. "60s").
	ExpiryCheckInterval string `mapstructure:"SESSION_EXPIRY_CHECK_INTERVAL"`
	// CleanupInterval is the tick of the store-wide expired-session reaper (e.g. "15m").
	CleanupInterval string `mapstructure:"SESSION_CLEANUP_INTERVAL"`
	// PermissionCacheTTL bounds how long a cached permission resolution stays fresh (e.g. "30s").
	PermissionCacheTTL string `mapstructure:"PERMISSION_CACHE_TTL"`
	// OTLPEndpoint is the OTLP collector endpoint for telemetry; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints (standard OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_MAX_DEVICES", 2)
	v.SetDefault("SESSION_DURATION", "24h")
	v.SetDefault("SESSION_HEARTBEAT_INTERVAL", "5m")
	v.SetDefault("SESSION_WARNING_WINDOW", "5m")
	v.SetDefault("SESSION_EXPIRY_CHECK_INTERVAL", "60s")
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "15m")
	v.SetDefault("PERMISSION_CACHE_TTL", "30s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.MaxDevices < 1 || cfg.MaxDevices > 16 {
		return nil, errors.New("config: SESSION_MAX_DEVICES must be between 1 and 16")
	}
	if cfg.SessionDurationValue() <= cfg.WarningWindowValue() {
		return nil, errors.New("config: SESSION_DURATION must be longer than SESSION_WARNING_WINDOW")
	}

	return &cfg, nil
}

// SessionDurationValue parses SessionDuration as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SessionDurationValue() time.Duration {
	return durationOr(c.SessionDuration, 24*time.Hour)
}

// HeartbeatIntervalValue parses HeartbeatInterval as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) HeartbeatIntervalValue() time.Duration {
	return durationOr(c.HeartbeatInterval, 5*time.Minute)
}

// WarningWindowValue parses WarningWindow as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) WarningWindowValue() time.Duration {
	return durationOr(c.WarningWindow, 5*time.Minute)
}

// ExpiryCheckIntervalValue parses ExpiryCheckInterval as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) ExpiryCheckIntervalValue() time.Duration {
	return durationOr(c.ExpiryCheckInterval, 60*time.Second)
}

// CleanupIntervalValue parses CleanupInterval as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) CleanupIntervalValue() time.Duration {
	return durationOr(c.CleanupInterval, 15*time.Minute)
}

// PermissionCacheTTLValue parses PermissionCacheTTL as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) PermissionCacheTTLValue() time.Duration {
	return durationOr(c.PermissionCacheTTL, 30*time.Second)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
