package gcp

import (
	"fmt"
	"time"
)

type Config struct {
	ProjectID             string
	CredentialsPath       string // empty uses Application Default Credentials
	TopicID               string
	EnableMessageOrdering bool
	Timeout               time.Duration
}

func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("GCP Pub/Sub config: project_id is required")
	}
	if c.TopicID == "" {
		return fmt.Errorf("GCP Pub/Sub config: topic_id is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

func (c *Config) GetType() string {
	return "gcp"
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("pubsub://projects/%s/topics/%s", c.ProjectID, c.TopicID)
}
