package aws

import (
	"fmt"
	"time"
)

// Config selects SQS when QueueURL is set and SNS otherwise.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	QueueURL        string
	TopicArn        string
	Timeout         time.Duration
}

func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("AWS region is required")
	}
	if c.QueueURL == "" && c.TopicArn == "" {
		return fmt.Errorf("either QueueURL (for SQS) or TopicArn (for SNS) is required")
	}
	if c.QueueURL != "" && c.TopicArn != "" {
		return fmt.Errorf("QueueURL and TopicArn are mutually exclusive")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access key id and secret access key must be set together")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

func (c *Config) GetType() string {
	if c.QueueURL != "" {
		return "sqs"
	}
	return "sns"
}

func (c *Config) GetConnectionString() string {
	if c.QueueURL != "" {
		return fmt.Sprintf("sqs://%s/%s", c.Region, c.QueueURL)
	}
	return fmt.Sprintf("sns://%s/%s", c.Region, c.TopicArn)
}
