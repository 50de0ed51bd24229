// Package redis publishes hits to a Redis stream.
package redis

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/base"
	"edge-gateway/internal/common/errors"
)

// Broker appends messages to a stream with XADD, one pipeline per batch.
type Broker struct {
	*base.BaseBroker
	client *redis.Client
	config *Config
}

// NewBroker connects and pings Redis.
func NewBroker(ctx context.Context, config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("redis", config)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Password:    config.Password,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &Broker{BaseBroker: baseBroker, client: client, config: config}, nil
}

func (b *Broker) Publish(ctx context.Context, messages []*brokers.Message) error {
	if err := base.StandardHealthCheck(b.client != nil, "redis"); err != nil {
		return err
	}

	pipe := b.client.Pipeline()
	for _, msg := range messages {
		pipe.XAdd(ctx, b.addArgs(msg))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return base.PublishError("redis", b.config.Stream, err)
	}
	return nil
}

func (b *Broker) addArgs(msg *brokers.Message) *redis.XAddArgs {
	fields := map[string]interface{}{
		"body":       string(msg.Body),
		"timestamp":  strconv.FormatInt(msg.Timestamp.UnixNano(), 10),
		"message_id": msg.MessageID,
		"key":        msg.Key,
	}
	for k, v := range msg.Headers {
		fields["header_"+k] = v
	}

	args := &redis.XAddArgs{
		Stream: base.TopicOr(msg, b.config.Stream),
		Values: fields,
	}
	if b.config.StreamMaxLen > 0 {
		args.MaxLen = b.config.StreamMaxLen
		args.Approx = true
	}
	return args
}

func (b *Broker) Health(ctx context.Context) error {
	if err := base.StandardHealthCheck(b.client != nil, "redis"); err != nil {
		return err
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("Redis ping failed", err)
	}
	return nil
}

func (b *Broker) Close() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}
