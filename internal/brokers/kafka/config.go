package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Brokers          []string
	ClientID         string
	Topic            string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Timeout          time.Duration
	FlushFrequency   time.Duration
}

var (
	validProtocols  = []string{"PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL"}
	validMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}
)

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("Kafka brokers are required")
	}
	for _, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("empty Kafka broker address")
		}
	}
	if c.Topic == "" {
		return fmt.Errorf("Kafka topic is required")
	}

	if c.ClientID == "" {
		c.ClientID = "edge-gateway"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FlushFrequency <= 0 {
		c.FlushFrequency = 100 * time.Millisecond
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}

	if !lo.Contains(validProtocols, c.SecurityProtocol) {
		return fmt.Errorf("invalid security protocol: %s", c.SecurityProtocol)
	}

	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		if c.SASLMechanism == "" {
			c.SASLMechanism = "PLAIN"
		}
		if !lo.Contains(validMechanisms, c.SASLMechanism) {
			return fmt.Errorf("invalid SASL mechanism: %s", c.SASLMechanism)
		}
		if c.SASLUsername == "" || c.SASLPassword == "" {
			return fmt.Errorf("SASL username and password are required for SASL authentication")
		}
	}

	return nil
}

func (c *Config) GetType() string {
	return "kafka"
}

func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}

func DefaultConfig() *Config {
	return &Config{
		Brokers:          []string{"localhost:9092"},
		ClientID:         "edge-gateway",
		Topic:            "hits",
		SecurityProtocol: "PLAINTEXT",
		Timeout:          30 * time.Second,
		FlushFrequency:   100 * time.Millisecond,
	}
}
