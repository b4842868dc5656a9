package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.MaxDevices != 2 {
		t.Errorf("MaxDevices = %d, want 2", cfg.MaxDevices)
	}
	if cfg.SessionDuration != "24h" {
		t.Errorf("SessionDuration = %q, want %q", cfg.SessionDuration, "24h")
	}
	if cfg.HeartbeatInterval != "5m" {
		t.Errorf("HeartbeatInterval = %q, want %q", cfg.HeartbeatInterval, "5m")
	}
	if cfg.WarningWindow != "5m" {
		t.Errorf("WarningWindow = %q, want %q", cfg.WarningWindow, "5m")
	}
	if cfg.ExpiryCheckInterval != "60s" {
		t.Errorf("ExpiryCheckInterval = %q, want %q", cfg.ExpiryCheckInterval, "60s")
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("OTLPEndpoint = %q, want empty", cfg.OTLPEndpoint)
	}
	if cfg.OTLPInsecure {
		t.Error("OTLPInsecure should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_MAX_DEVICES", "3")
	os.Setenv("SESSION_DURATION", "48h")
	os.Setenv("SESSION_HEARTBEAT_INTERVAL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDevices != 3 {
		t.Errorf("MaxDevices = %d, want 3", cfg.MaxDevices)
	}
	if got := cfg.SessionDurationValue(); got != 48*time.Hour {
		t.Errorf("SessionDurationValue = %v, want 48h", got)
	}
	if got := cfg.HeartbeatIntervalValue(); got != 90*time.Second {
		t.Errorf("HeartbeatIntervalValue = %v, want 90s", got)
	}
}

func TestLoad_MaxDevicesOutOfRange(t *testing.T) {
	for _, v := range []string{"0", "-1", "17"} {
		os.Clearenv()
		os.Setenv("SESSION_MAX_DEVICES", v)
		if _, err := Load(); err == nil {
			t.Errorf("Load with SESSION_MAX_DEVICES=%s should fail", v)
		}
	}
}

func TestLoad_DurationShorterThanWarning(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_DURATION", "4m")
	os.Setenv("SESSION_WARNING_WINDOW", "5m")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject SESSION_DURATION <= SESSION_WARNING_WINDOW")
	}
}

func TestDurationAccessors_InvalidFallsBackToDefault(t *testing.T) {
	cfg := &Config{
		SessionDuration:     "not-a-duration",
		HeartbeatInterval:   "",
		WarningWindow:       "-5m",
		ExpiryCheckInterval: "bogus",
		CleanupInterval:     "",
		PermissionCacheTTL:  "",
	}
	if got := cfg.SessionDurationValue(); got != 24*time.Hour {
		t.Errorf("SessionDurationValue = %v, want 24h", got)
	}
	if got := cfg.HeartbeatIntervalValue(); got != 5*time.Minute {
		t.Errorf("HeartbeatIntervalValue = %v, want 5m", got)
	}
	if got := cfg.WarningWindowValue(); got != 5*time.Minute {
		t.Errorf("WarningWindowValue = %v, want 5m", got)
	}
	if got := cfg.ExpiryCheckIntervalValue(); got != 60*time.Second {
		t.Errorf("ExpiryCheckIntervalValue = %v, want 60s", got)
	}
	if got := cfg.CleanupIntervalValue(); got != 15*time.Minute {
		t.Errorf("CleanupIntervalValue = %v, want 15m", got)
	}
	if got := cfg.PermissionCacheTTLValue(); got != 30*time.Second {
		t.Errorf("PermissionCacheTTLValue = %v, want 30s", got)
	}
}
