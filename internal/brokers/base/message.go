package base

import (
	"github.com/samber/lo"

	"edge-gateway/internal/brokers"
)

// TopicOr returns the message topic, or fallback when it is empty.
func TopicOr(msg *brokers.Message, fallback string) string {
	if msg.Topic != "" {
		return msg.Topic
	}
	return fallback
}

// InterfaceHeaders converts headers for brokers that take untyped tables.
func InterfaceHeaders(headers map[string]string) map[string]interface{} {
	return lo.MapValues(headers, func(v string, _ string) interface{} { return v })
}

// Chunks splits messages into groups no larger than size, for APIs with
// per-call entry limits.
func Chunks(messages []*brokers.Message, size int) [][]*brokers.Message {
	if size < 1 {
		size = 1
	}
	return lo.Chunk(messages, size)
}
