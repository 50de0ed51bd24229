package kafka

import (
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/brokers"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "no brokers", config: Config{Topic: "hits"}, wantErr: "brokers are required"},
		{name: "empty broker", config: Config{Brokers: []string{""}, Topic: "hits"}, wantErr: "empty Kafka broker"},
		{name: "no topic", config: Config{Brokers: []string{"k:9092"}}, wantErr: "topic is required"},
		{name: "bad protocol", config: Config{Brokers: []string{"k:9092"}, Topic: "hits", SecurityProtocol: "TLS"}, wantErr: "invalid security protocol"},
		{name: "sasl without credentials", config: Config{Brokers: []string{"k:9092"}, Topic: "hits", SecurityProtocol: "SASL_SSL"}, wantErr: "SASL username and password"},
		{name: "bad mechanism", config: Config{Brokers: []string{"k:9092"}, Topic: "hits", SecurityProtocol: "SASL_SSL", SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}, wantErr: "invalid SASL mechanism"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := &Config{Brokers: []string{"k1:9092", "k2:9092"}, Topic: "hits"}
	require.NoError(t, c.Validate())

	assert.Equal(t, "edge-gateway", c.ClientID)
	assert.Equal(t, "PLAINTEXT", c.SecurityProtocol)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "k1:9092,k2:9092", c.GetConnectionString())
}

func TestProducerConfig_SASL(t *testing.T) {
	c := &Config{Brokers: []string{"k:9092"}, Topic: "hits", SecurityProtocol: "SASL_SSL", SASLUsername: "u", SASLPassword: "p"}
	require.NoError(t, c.Validate())

	cm := *producerConfig(c)
	assert.Equal(t, "SASL_SSL", cm["security.protocol"])
	assert.Equal(t, "PLAIN", cm["sasl.mechanism"])
	assert.Equal(t, "u", cm["sasl.username"])
	assert.Equal(t, "all", cm["acks"])
}

func TestToKafkaMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	km := toKafkaMessage(&brokers.Message{
		Key:       "route-1",
		Body:      []byte(`{"id":"hit-1"}`),
		Headers:   map[string]string{"owner_id": "owner-1"},
		Timestamp: ts,
	}, "hits")

	assert.Equal(t, "hits", *km.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, km.TopicPartition.Partition)
	assert.Equal(t, []byte("route-1"), km.Key)
	assert.Equal(t, ts, km.Timestamp)
	assert.Equal(t, []kafka.Header{{Key: "owner_id", Value: []byte("owner-1")}}, km.Headers)
}
