// Package utils holds small helpers shared by gateway packages.
package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig controls RetryWithBackoff.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// JitterFactor adds up to this fraction of the delay at random.
	JitterFactor float64
	// RetryableErrors filters errors worth retrying. Nil retries everything.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig is used for startup connections to backing stores.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryWithBackoff calls fn until it succeeds, the attempts run out, a
// non-retryable error is returned or ctx is done.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if config.RetryableErrors != nil && !config.RetryableErrors(lastErr) {
			return lastErr
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if config.JitterFactor > 0 && wait > 0 {
			wait += time.Duration(rand.Int64N(int64(float64(wait)*config.JitterFactor) + 1))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
