// Package rabbitmq publishes hits to a durable RabbitMQ queue.
package rabbitmq

import (
	"context"

	"github.com/streadway/amqp"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/base"
)

type Broker struct {
	*base.BaseBroker
	config *Config
	client *Client
}

// NewBroker dials eagerly so that a bad URL fails at startup.
func NewBroker(config *Config) (*Broker, error) {
	return newBroker(config, nil)
}

func newBroker(config *Config, dial Dialer) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}

	b := &Broker{
		BaseBroker: baseBroker,
		config:     config,
		client:     NewClient(config.URL, config.Queue, dial),
	}
	if err := b.client.Do(func(amqpChannel) error { return nil }); err != nil {
		return nil, err
	}
	return b, nil
}

func toPublishing(msg *brokers.Message) amqp.Publishing {
	return amqp.Publishing{
		Headers:      amqp.Table(base.InterfaceHeaders(msg.Headers)),
		ContentType:  msg.Headers[brokers.HeaderContentType],
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	}
}

// Publish sends to the configured exchange, or straight to the queue through
// the default exchange.
func (b *Broker) Publish(ctx context.Context, messages []*brokers.Message) error {
	err := b.client.Do(func(ch amqpChannel) error {
		for _, msg := range messages {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := base.TopicOr(msg, b.config.Queue)
			if err := ch.Publish(b.config.Exchange, key, false, false, toPublishing(msg)); err != nil {
				return err
			}
		}
		return nil
	})
	return base.PublishError("rabbitmq", b.config.Queue, err)
}

func (b *Broker) Health(context.Context) error {
	return b.client.Do(func(amqpChannel) error { return nil })
}

func (b *Broker) Close() error {
	return b.client.Close()
}
