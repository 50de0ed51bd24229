package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry() RetryConfig {
	config := DefaultRetryConfig()
	config.InitialDelay = time.Millisecond
	config.MaxDelay = 5 * time.Millisecond
	return config
}

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("redis not ready")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	config := fastRetry()
	config.MaxAttempts = 2
	cause := errors.New("refused")

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	config := fastRetry()
	fatal := errors.New("bad password")
	config.RetryableErrors = func(err error) bool { return !errors.Is(err, fatal) }

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := fastRetry()
	config.InitialDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, config, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"90s": 90 * time.Second,
		"2d":  48 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

