package memory

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
)

// RetrierConfig configures a Retrier. Zero durations fall back to defaults.
type RetrierConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	Logger          *zerolog.Logger
}

// Retrier implements usecase.Retrier with exponential backoff. Only
// concurrency conflicts are retried.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
}

// NewRetrier creates a new Retrier.
func NewRetrier(cfg RetrierConfig) *Retrier {
	r := &Retrier{
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		maxElapsedTime:  cfg.MaxElapsedTime,
		logger:          zerolog.Nop(),
	}
	if r.initialInterval <= 0 {
		r.initialInterval = 5 * time.Millisecond
	}
	if r.maxInterval <= 0 {
		r.maxInterval = 100 * time.Millisecond
	}
	if r.maxElapsedTime <= 0 {
		r.maxElapsedTime = 2 * time.Second
	}
	if cfg.Logger != nil {
		r.logger = *cfg.Logger
	}
	return r
}

// Retry executes an operation with exponential backoff on retryable errors.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("concurrency conflict, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

// isRetryableError checks if an error should trigger a retry.
func isRetryableError(err error) bool {
	return errors.Is(err, domain.ErrConcurrencyConflict)
}
