package storage

import (
	"fmt"

	"edge-gateway/internal/circuitbreaker"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/config"
	"edge-gateway/internal/redis"
)

// NewStore creates the configured backend wrapped in a circuit breaker.
func NewStore(cfg *config.Config, logger logging.Logger) (Store, error) {
	var store Store

	switch cfg.StoreKind {
	case config.StoreRedis:
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			return nil, errors.ConnectionError("redis store unavailable", err)
		}
		logger.Info("Redis: Connected", logging.String("address", cfg.RedisAddress))
		store = NewRedisStore(client)

	case config.StoreMemory:
		mem := NewMemoryStore()
		if cfg.StoreSeedFile != "" {
			if err := mem.LoadSeedFile(cfg.StoreSeedFile); err != nil {
				return nil, err
			}
			logger.Info("Memory store seeded", logging.String("path", cfg.StoreSeedFile))
		}
		store = mem

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported store kind: %s", cfg.StoreKind))
	}

	breaker := circuitbreaker.New("store-"+cfg.StoreKind, circuitbreaker.Config{
		MaxFailures:           cfg.BreakerMaxFailures,
		Timeout:               cfg.BreakerTimeout,
		MaxConcurrentRequests: 1,
	}, logger)
	return NewBreakerStore(store, breaker), nil
}
