package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
api:
  url: http://api.internal:9000
store:
  driver: redis
  freshness: 12h
redis:
  addr: localhost:6379
session:
  grace_delay: 0s
  tick_save_every: 10
`)
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MOCKTEST_API_URL", "http://override:8000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.URL != "http://override:8000" || cfg.Log.Level != "debug" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.Store.Driver != DriverRedis || cfg.Session.TickSaveEvery != 10 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if got := TTLDuration(cfg.Store.Freshness, time.Hour); got != 12*time.Hour {
		t.Fatalf("expected 12h freshness, got %s", got)
	}
	if got := TTLDuration(cfg.Session.GraceDelay, time.Second); got != 0 {
		t.Fatalf("expected zero grace delay, got %s", got)
	}
	if cfg.Session.AutosaveDelay != "1s" {
		t.Fatalf("expected default autosave delay kept, got %q", cfg.Session.AutosaveDelay)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverFile || cfg.Session.TickSaveEvery != 30 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestValidateRequiresDriverSettings(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = DriverPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected postgres url required")
	}
	cfg.Store.Driver = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown driver rejected")
	}
	cfg = Default()
	cfg.API.URL = ""
	cfg.API.Offline = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("offline mode needs no url: %v", err)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on bad input, got %s", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
