package config_test

import (
	"testing"
	"time"

	"github.com/iho/sagaledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONFLICT_RETRIES", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}

	if cfg.ConflictRetries != 0 {
		t.Fatalf("expected conflict retries disabled by default, got %d", cfg.ConflictRetries)
	}

	if cfg.SettleTimeout != 5*time.Second {
		t.Fatalf("expected default settle timeout 5s, got %s", cfg.SettleTimeout)
	}

	if !cfg.MetricsEnabled {
		t.Fatalf("expected metrics enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CONFLICT_RETRIES", "3")
	t.Setenv("RETRY_INITIAL_INTERVAL", "1ms")
	t.Setenv("SETTLE_TIMEOUT", "45s")
	t.Setenv("AMOUNT_SCALE", "2")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("expected logging overrides, got level=%s format=%s", cfg.LogLevel, cfg.LogFormat)
	}

	if cfg.ConflictRetries != 3 {
		t.Fatalf("expected 3 conflict retries, got %d", cfg.ConflictRetries)
	}

	if cfg.RetryInitialInterval != time.Millisecond {
		t.Fatalf("expected retry interval override, got %s", cfg.RetryInitialInterval)
	}

	if cfg.SettleTimeout != 45*time.Second {
		t.Fatalf("expected settle timeout override, got %s", cfg.SettleTimeout)
	}

	if cfg.AmountScale != 2 || cfg.MetricsEnabled {
		t.Fatalf("expected presentation and metrics overrides, got scale=%d metrics=%v", cfg.AmountScale, cfg.MetricsEnabled)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("SETTLE_TIMEOUT", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
