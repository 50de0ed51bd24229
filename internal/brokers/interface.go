// Package brokers ships click telemetry to external systems.
//
// A Sink consumes batches of hits. Message brokers implement the narrower
// Publisher interface and are turned into a Sink by NewPublisherSink, which
// encodes every hit as one JSON message.
package brokers

import (
	"context"
	"time"

	"edge-gateway/internal/models"
)

// Sink is the destination of hit batches. It satisfies batching.Processor.
type Sink interface {
	Name() string
	Process(ctx context.Context, batch []models.Hit) error
	Health(ctx context.Context) error
	Close() error
}

// Publisher delivers encoded messages to one topic, stream or queue.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, messages []*Message) error
	Health(ctx context.Context) error
	Close() error
}

// Message is a broker-neutral envelope.
type Message struct {
	Topic     string
	Key       string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	MessageID string
}

// BrokerConfig is implemented by every publisher's connection settings.
type BrokerConfig interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}
