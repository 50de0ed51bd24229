// Package circuitbreaker guards calls to backing stores and sinks with
// Sony's gobreaker.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before probing again
	Timeout time.Duration
	// MaxConcurrentRequests is the number of probes allowed while half-open.
	// That many consecutive successes close the circuit again.
	MaxConcurrentRequests int
}

// DefaultConfig returns the configuration used for store lookups
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker wraps a gobreaker circuit breaker
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// New creates a named breaker. An invalid config falls back to DefaultConfig.
func New(name string, config Config, logger logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.Field{Key: "error", Value: err.Error()},
			logging.Field{Key: "name", Value: name},
		)
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
		IsSuccessful: isSuccessful,
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// isSuccessful keeps answers that say something about the data, not the
// backend, from counting as failures.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	switch errors.GetType(err) {
	case errors.ErrTypeValidation, errors.ErrTypeNotFound, errors.ErrTypeMalformed:
		return true
	}
	// A caller giving up is not the backend's fault.
	return stderrors.Is(err, context.Canceled)
}

// Execute runs fn within the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return b.translate(err)
}

// Call runs fn within the breaker and returns its typed result.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		if v, ok := out.(T); ok {
			zero = v
		}
		return zero, b.translate(err)
	}
	v, _ := out.(T)
	return v, nil
}

func (b *Breaker) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gobreaker.ErrOpenState):
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' is open", b.name), err)
	case stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' has too many requests", b.name), err)
	}
	return err
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	switch b.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// IsOpen returns true if the circuit breaker is open
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
