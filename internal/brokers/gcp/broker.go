// Package gcp publishes hits to a Google Cloud Pub/Sub topic.
package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/base"
	"edge-gateway/internal/common/errors"
)

type Broker struct {
	*base.BaseBroker
	config *Config
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewBroker creates the client and checks that the topic exists.
func NewBroker(ctx context.Context, config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("gcp", config)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := pubsub.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(config.TopicID)
	checkCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	exists, err := topic.Exists(checkCtx)
	if err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		client.Close()
		return nil, errors.ConfigError(fmt.Sprintf("topic %s does not exist", config.TopicID))
	}

	topic.PublishSettings = publishSettings()
	topic.EnableMessageOrdering = config.EnableMessageOrdering

	return &Broker{BaseBroker: baseBroker, config: config, client: client, topic: topic}, nil
}

// publishSettings lets the client batch on top of our own batching but
// flush quickly, since batches arrive already grouped.
func publishSettings() pubsub.PublishSettings {
	s := pubsub.DefaultPublishSettings
	s.NumGoroutines = 2
	s.CountThreshold = 100
	s.DelayThreshold = 10 * time.Millisecond
	return s
}

func toPubsubMessage(msg *brokers.Message, ordered bool) *pubsub.Message {
	pm := &pubsub.Message{
		Data:       msg.Body,
		Attributes: msg.Headers,
	}
	if ordered {
		pm.OrderingKey = msg.Key
	}
	return pm
}

// Publish hands every message to the client and waits for all results.
func (b *Broker) Publish(ctx context.Context, messages []*brokers.Message) error {
	if err := base.StandardHealthCheck(b.topic != nil, "gcp"); err != nil {
		return err
	}

	results := make([]*pubsub.PublishResult, len(messages))
	for i, msg := range messages {
		results[i] = b.topic.Publish(ctx, toPubsubMessage(msg, b.config.EnableMessageOrdering))
	}

	var failed int
	var lastErr error
	for _, r := range results {
		if _, err := r.Get(ctx); err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		return base.PublishError("gcp", b.config.TopicID, fmt.Errorf("%d of %d messages failed: %w", failed, len(messages), lastErr))
	}
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	if err := base.StandardHealthCheck(b.topic != nil, "gcp"); err != nil {
		return err
	}
	exists, err := b.topic.Exists(ctx)
	if err != nil {
		return errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		return errors.NotFoundError("topic " + b.config.TopicID)
	}
	return nil
}

func (b *Broker) Close() error {
	if b.topic != nil {
		b.topic.Stop()
		b.topic = nil
	}
	if b.client != nil {
		err := b.client.Close()
		b.client = nil
		return err
	}
	return nil
}
