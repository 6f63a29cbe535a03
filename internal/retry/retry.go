// Package retry runs operations with exponential backoff.
//
//	err := retry.Do(ctx, retry.Config{
//	    MaxRetries:     5,
//	    InitialBackoff: 50 * time.Millisecond,
//	    MaxBackoff:     time.Second,
//	}, openDatabase, isLockHeld)
//
// The n-th retry waits InitialBackoff * 2^(n-1), capped at MaxBackoff, plus
// a jitter that grows linearly with the attempt number. Cancelling the
// context ends the wait immediately.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the backoff schedule. MaxRetries and InitialBackoff must
// be positive.
type Config struct {
	// MaxRetries is the maximum number of calls to the function.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration
	// Jitter in [0, 1] adds backoff*Jitter*attempt/MaxRetries to each wait.
	Jitter float64
}

// ShouldRetryFunc reports whether an error is transient. A nil
// ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, returns a non-retryable error, or has been
// called cfg.MaxRetries times. Exhausting the retries wraps the last error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(cfg, attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	if cfg.Jitter > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}
	return backoff
}
