// Package kafka publishes hits to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/base"
	"edge-gateway/internal/common/errors"
)

type Broker struct {
	*base.BaseBroker
	config   *Config
	producer *kafka.Producer
}

// producerConfig maps Config onto librdkafka settings.
func producerConfig(config *Config) *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"client.id":          config.ClientID,
		"linger.ms":          int(config.FlushFrequency.Milliseconds()),
		"message.timeout.ms": int(config.Timeout.Milliseconds()),
		"acks":               "all",
	}

	if config.SecurityProtocol != "PLAINTEXT" {
		cm["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		cm["sasl.mechanism"] = config.SASLMechanism
		cm["sasl.username"] = config.SASLUsername
		cm["sasl.password"] = config.SASLPassword
	}
	return &cm
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("kafka", config)
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(producerConfig(config))
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}

	return &Broker{BaseBroker: baseBroker, config: config, producer: producer}, nil
}

func toKafkaMessage(msg *brokers.Message, topic string) *kafka.Message {
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          msg.Body,
		Timestamp:      msg.Timestamp,
	}
	if msg.Key != "" {
		km.Key = []byte(msg.Key)
	}
	for key, value := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return km
}

// Publish produces every message and waits for all delivery reports.
func (b *Broker) Publish(ctx context.Context, messages []*brokers.Message) error {
	if err := base.StandardHealthCheck(b.producer != nil, "kafka"); err != nil {
		return err
	}

	deliveries := make(chan kafka.Event, len(messages))
	produced := 0
	for _, msg := range messages {
		topic := base.TopicOr(msg, b.config.Topic)
		if err := b.producer.Produce(toKafkaMessage(msg, topic), deliveries); err != nil {
			b.GetLogger().Error("Failed to produce message", err)
			break
		}
		produced++
	}

	var failed int
	for i := 0; i < produced; i++ {
		select {
		case e := <-deliveries:
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				failed++
			}
		case <-ctx.Done():
			return base.PublishError("kafka", b.config.Topic, ctx.Err())
		}
	}

	if lost := len(messages) - produced + failed; lost > 0 {
		return base.PublishError("kafka", b.config.Topic, fmt.Errorf("%d of %d messages not delivered", lost, len(messages)))
	}
	return nil
}

func (b *Broker) Health(context.Context) error {
	if err := base.StandardHealthCheck(b.producer != nil, "kafka"); err != nil {
		return err
	}

	metadata, err := b.producer.GetMetadata(&b.config.Topic, false, int(b.config.Timeout.Milliseconds()))
	if err != nil {
		return errors.ConnectionError("failed to get Kafka metadata", err)
	}
	if len(metadata.Brokers) == 0 {
		return errors.ConnectionError("no Kafka brokers available", nil)
	}
	return nil
}

// Close flushes outstanding messages before closing the producer.
func (b *Broker) Close() error {
	if b.producer == nil {
		return nil
	}
	if remaining := b.producer.Flush(int(b.config.Timeout.Milliseconds())); remaining > 0 {
		b.GetLogger().Warn("Kafka producer closed with undelivered messages")
	}
	b.producer.Close()
	b.producer = nil
	return nil
}
