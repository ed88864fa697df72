package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig controls exponential backoff for retried operations. Only read
// calls and receipt polling are retried; write submissions never are, because
// a write whose acknowledgement was lost may still have succeeded.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      15 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier executes read operations with bounded exponential backoff.
type Retrier struct {
	config *RetryConfig
	logger zerolog.Logger
}

// NewRetrier creates a retrier; a nil config selects the defaults.
func NewRetrier(config *RetryConfig, logger zerolog.Logger) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{
		config: config,
		logger: logger.With().Str("component", "retrier").Logger(),
	}
}

// Do runs fn until it succeeds, the attempt budget runs out, or the context
// is cancelled.
func (r *Retrier) Do(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Debug().
					Str("operation", operation).
					Int("attempts", attempt).
					Msg("operation succeeded after retries")
			}
			return nil
		}
		lastErr = err

		if attempt == r.config.MaxAttempts {
			break
		}

		r.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("operation failed, retrying")

		select {
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * r.config.BackoffFactor)
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.config.MaxAttempts, lastErr)
}
