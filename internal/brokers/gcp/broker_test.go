package gcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/brokers"
)

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{TopicID: "hits"}).Validate())
	assert.Error(t, (&Config{ProjectID: "proj"}).Validate())

	c := &Config{ProjectID: "proj", TopicID: "hits"}
	require.NoError(t, c.Validate())
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "pubsub://projects/proj/topics/hits", c.GetConnectionString())
}

func TestToPubsubMessage(t *testing.T) {
	msg := &brokers.Message{Key: "route-1", Body: []byte("{}"), Headers: map[string]string{"route_id": "route-1"}}

	unordered := toPubsubMessage(msg, false)
	assert.Empty(t, unordered.OrderingKey)
	assert.Equal(t, []byte("{}"), unordered.Data)
	assert.Equal(t, "route-1", unordered.Attributes["route_id"])

	assert.Equal(t, "route-1", toPubsubMessage(msg, true).OrderingKey)
}

func TestPublishSettings(t *testing.T) {
	s := publishSettings()
	assert.Equal(t, 100, s.CountThreshold)
	assert.Equal(t, 10*time.Millisecond, s.DelayThreshold)
}

func TestClosedBrokerIsUnhealthy(t *testing.T) {
	b := &Broker{config: &Config{ProjectID: "proj", TopicID: "hits"}}
	assert.Error(t, b.Health(t.Context()))
	assert.NoError(t, b.Close())
}
