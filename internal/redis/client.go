package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// HGetJSON decodes the JSON document stored in a hash field into dest.
// found is false when the hash or the field does not exist.
func (c *Client) HGetJSON(ctx context.Context, key, field string, dest interface{}) (found bool, err error) {
	data, err := c.rdb.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", key, field, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return true, &DecodeError{Key: key, Field: field, Err: err}
	}
	return true, nil
}

// HSetJSON stores value as a JSON document in a hash field.
func (c *Client) HSetJSON(ctx context.Context, key, field string, value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
	}
	return c.rdb.HSet(ctx, key, field, data).Err()
}

func (c *Client) HDel(ctx context.Context, key, field string) error {
	return c.rdb.HDel(ctx, key, field).Err()
}

// DecodeError reports a stored document that is not valid JSON for its type.
type DecodeError struct {
	Key   string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed document at %s/%s: %v", e.Key, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
