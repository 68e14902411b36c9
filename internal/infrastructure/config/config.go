package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Concurrency conflict retries (0 disables retrying)
	ConflictRetries      int           `env:"CONFLICT_RETRIES"       envDefault:"0"`
	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"5ms"`
	RetryMaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL"     envDefault:"100ms"`
	RetryMaxElapsed      time.Duration `env:"RETRY_MAX_ELAPSED"      envDefault:"2s"`

	// Saga
	SettleTimeout time.Duration `env:"SETTLE_TIMEOUT" envDefault:"5s"`

	// Presentation
	AmountScale int32 `env:"AMOUNT_SCALE" envDefault:"0"`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
