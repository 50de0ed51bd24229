// Package manager builds the configured hit sink.
package manager

import (
	"context"
	"fmt"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/aws"
	"edge-gateway/internal/brokers/gcp"
	"edge-gateway/internal/brokers/kafka"
	"edge-gateway/internal/brokers/postgres"
	"edge-gateway/internal/brokers/rabbitmq"
	"edge-gateway/internal/brokers/redis"
	"edge-gateway/internal/circuitbreaker"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/config"
	"edge-gateway/internal/models"
)

// NewSink connects the sink selected by cfg.HitSink. Every sink except the
// log sink is guarded by a circuit breaker so a dead backend fails batches
// fast instead of holding consumers.
func NewSink(ctx context.Context, cfg *config.Config, logger logging.Logger) (brokers.Sink, error) {
	if logger == nil {
		logger = logging.Component("brokers")
	}

	sink, err := build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.HitSink == config.SinkLog {
		return sink, nil
	}

	breaker := circuitbreaker.New("sink-"+cfg.HitSink, circuitbreaker.Config{
		MaxFailures:           cfg.BreakerMaxFailures,
		Timeout:               cfg.BreakerTimeout,
		MaxConcurrentRequests: 1,
	}, logger)
	logger.Info("Hit sink ready", logging.String("sink", sink.Name()), logging.String("topic", cfg.HitTopic))
	return NewGuardedSink(sink, breaker), nil
}

func build(ctx context.Context, cfg *config.Config, logger logging.Logger) (brokers.Sink, error) {
	publish := func(p brokers.Publisher, err error) (brokers.Sink, error) {
		if err != nil {
			return nil, err
		}
		return brokers.NewPublisherSink(p, cfg.HitTopic, logger), nil
	}

	switch cfg.HitSink {
	case config.SinkLog:
		return brokers.NewLogSink(logging.Component("hits")), nil
	case config.SinkKafka:
		return publish(kafka.NewBroker(&kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.HitTopic}))
	case config.SinkRedis:
		return publish(redis.NewBroker(ctx, &redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
			Stream:   cfg.HitTopic,
		}))
	case config.SinkAMQP:
		return publish(rabbitmq.NewBroker(&rabbitmq.Config{URL: cfg.AMQPURL, Queue: cfg.HitTopic}))
	case config.SinkSQS, config.SinkSNS:
		ac := &aws.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKey,
			SecretAccessKey: cfg.AWSSecretKey,
		}
		if cfg.HitSink == config.SinkSQS {
			ac.QueueURL = cfg.SQSQueueURL
		} else {
			ac.TopicArn = cfg.SNSTopicARN
		}
		return publish(aws.NewBroker(ctx, ac))
	case config.SinkPubSub:
		return publish(gcp.NewBroker(ctx, &gcp.Config{
			ProjectID:       cfg.GCPProjectID,
			CredentialsPath: cfg.GCPCredsFile,
			TopicID:         cfg.HitTopic,
		}))
	case config.SinkPostgres:
		return postgres.NewSink(ctx, &postgres.Config{DSN: cfg.PostgresURL, Table: cfg.HitTopic})
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown hit sink %q", cfg.HitSink))
	}
}

// GuardedSink runs batches through a circuit breaker.
type GuardedSink struct {
	sink    brokers.Sink
	breaker *circuitbreaker.Breaker
}

func NewGuardedSink(sink brokers.Sink, breaker *circuitbreaker.Breaker) *GuardedSink {
	return &GuardedSink{sink: sink, breaker: breaker}
}

func (g *GuardedSink) Name() string { return g.sink.Name() }

func (g *GuardedSink) Process(ctx context.Context, batch []models.Hit) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.sink.Process(ctx, batch)
	})
}

func (g *GuardedSink) Health(ctx context.Context) error {
	if g.breaker.IsOpen() {
		return errors.ConnectionError("hit sink circuit open", nil).WithContext("sink", g.sink.Name())
	}
	return g.sink.Health(ctx)
}

func (g *GuardedSink) Close() error { return g.sink.Close() }
