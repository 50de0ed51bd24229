package redis

import (
	"fmt"
	"time"
)

type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	Timeout      time.Duration
	Stream       string
	StreamMaxLen int64 // 0 = no limit
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("Redis address is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("Redis stream name is required")
	}

	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.StreamMaxLen < 0 {
		c.StreamMaxLen = 0
	}
	return nil
}

func (c *Config) GetType() string {
	return "redis"
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("redis://%s/%d/%s", c.Address, c.DB, c.Stream)
}

func DefaultConfig() *Config {
	return &Config{
		Address:      "localhost:6379",
		PoolSize:     10,
		Timeout:      5 * time.Second,
		Stream:       "hits",
		StreamMaxLen: 1_000_000,
	}
}
