package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
)

func testConfig(maxFailures int, timeout time.Duration) Config {
	return Config{
		MaxFailures:           maxFailures,
		Timeout:               timeout,
		MaxConcurrentRequests: 1,
	}
}

func TestBreaker(t *testing.T) {
	logger := logging.GetGlobalLogger()
	ctx := context.Background()

	t.Run("basic operation", func(t *testing.T) {
		cb := New("test-basic", testConfig(2, 100*time.Millisecond), logger)
		assert.Equal(t, StateClosed, cb.State())

		err := cb.Execute(ctx, func(context.Context) error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("circuit opens after failures", func(t *testing.T) {
		cb := New("test-failures", testConfig(3, time.Minute), logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(ctx, func(context.Context) error {
				return fmt.Errorf("failure %d", i)
			})
			assert.Error(t, err)
		}
		assert.True(t, cb.IsOpen())

		err := cb.Execute(ctx, func(context.Context) error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
		assert.Contains(t, err.Error(), "is open")
	})

	t.Run("recovers through half-open", func(t *testing.T) {
		cb := New("test-half-open", testConfig(2, 50*time.Millisecond), logger)
		for i := 0; i < 2; i++ {
			_ = cb.Execute(ctx, func(context.Context) error { return fmt.Errorf("failure") })
		}
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("not found does not count as failure", func(t *testing.T) {
		cb := New("test-not-found", testConfig(2, time.Minute), logger)
		for i := 0; i < 5; i++ {
			err := cb.Execute(ctx, func(context.Context) error {
				return errors.NotFoundError("route")
			})
			assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := New("test-invalid", Config{}, logger)
		assert.Equal(t, "test-invalid", cb.Name())
		assert.Equal(t, StateClosed, cb.State())
	})
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	cb := New("test-call", testConfig(1, time.Minute), nil)

	v, err := Call(ctx, cb, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Call(ctx, cb, func(context.Context) (int, error) { return 0, fmt.Errorf("down") })
	assert.EqualError(t, err, "down")

	_, err = Call(ctx, cb, func(context.Context) (int, error) { return 1, nil })
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MaxFailures: 1, Timeout: time.Second}.Validate())
	assert.Error(t, Config{MaxFailures: 0, Timeout: time.Second, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, MaxConcurrentRequests: 1}.Validate())
}
