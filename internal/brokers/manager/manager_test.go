package manager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/circuitbreaker"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/config"
	"edge-gateway/internal/models"
)

type flakySink struct {
	calls int
	err   error
}

func (s *flakySink) Name() string { return "flaky" }
func (s *flakySink) Process(context.Context, []models.Hit) error {
	s.calls++
	return s.err
}
func (s *flakySink) Health(context.Context) error { return nil }
func (s *flakySink) Close() error                 { return nil }

func TestNewSink_DefaultsToLog(t *testing.T) {
	cfg := config.Load()

	sink, err := NewSink(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &brokers.LogSink{}, sink)
	assert.NoError(t, sink.Process(context.Background(), []models.Hit{{ID: "hit-1"}}))
}

func TestNewSink_RedisStream(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Load()
	cfg.HitSink = config.SinkRedis
	cfg.RedisAddress = mr.Addr()

	sink, err := NewSink(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer sink.Close()

	assert.IsType(t, &GuardedSink{}, sink)
	assert.Equal(t, "redis", sink.Name())
	require.NoError(t, sink.Process(context.Background(), []models.Hit{{ID: "hit-1", RouteID: "route-1"}}))
	require.NoError(t, sink.Health(context.Background()))

	assert.True(t, mr.Exists("hits"))
}

func TestNewSink_MisconfiguredSinkFails(t *testing.T) {
	cfg := config.Load()
	cfg.HitSink = config.SinkAMQP
	cfg.AMQPURL = ""

	_, err := NewSink(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	cfg.HitSink = "carrier-pigeon"
	_, err = NewSink(context.Background(), cfg, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestGuardedSink_OpensAfterFailures(t *testing.T) {
	inner := &flakySink{err: fmt.Errorf("broker down")}
	breaker := circuitbreaker.New("sink-test", circuitbreaker.Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)
	g := NewGuardedSink(inner, breaker)
	ctx := context.Background()

	assert.Error(t, g.Process(ctx, nil))
	assert.Error(t, g.Process(ctx, nil))
	err := g.Process(ctx, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	assert.Equal(t, 2, inner.calls)
	assert.Error(t, g.Health(ctx))
}
