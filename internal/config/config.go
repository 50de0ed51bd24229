// Package config provides configuration management for the edge gateway.
// It loads configuration from environment variables with sensible defaults
// and validates the result so the gateway only starts with a usable setup.
//
// Environment Variables:
//
// Listeners:
//   - HTTP_ADDRS: Comma separated plaintext listen addresses (default: :8080)
//   - TLS_ADDRS: Comma separated TLS listen addresses with SNI selection (default: none)
//   - REQUEST_TIMEOUT: Deadline for resolving a single request (default: 5s)
//   - SHUTDOWN_TIMEOUT: Time allowed for graceful shutdown (default: 30s)
//
// Stores:
//   - STORE_KIND: Backing store for routes, certificates and settings, "redis" or "memory" (default: redis)
//   - STORE_SEED_FILE: JSON document preloaded into the memory store
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - BREAKER_MAX_FAILURES: Consecutive store failures that open the circuit (default: 5)
//   - BREAKER_TIMEOUT: How long an open circuit rejects calls (default: 30s)
//
// Caches:
//   - CACHE_CAPACITY: Maximum entries per cache (default: 100000)
//   - ROUTE_CACHE_TTL / ROUTE_CACHE_TTI: Route cache expiry since write / since last read (default: 5m / 1m)
//   - CERT_CACHE_TTL: Certificate cache expiry (default: 1h)
//   - SETTINGS_CACHE_TTL: User settings cache expiry (default: 5m)
//
// Routing:
//   - ROOT_INDEX_URL: Index URL template for "/" requests, {host} is replaced (default: https://{host}/index.html)
//   - ROOT_PROXY: Proxy the index page instead of redirecting (default: false)
//   - NOT_FOUND_URL: Redirect template for unknown routes, empty renders a 404 page
//   - DEBUG_TOKEN_SECRET: HMAC secret for debug_token client IP overrides, empty disables overrides
//
// Security:
//   - CONFIG_ENCRYPTION_KEY: Key for private keys stored encrypted at rest (32 characters if provided)
//
// GeoIP:
//   - GEOIP_DB_PATH: MaxMind database path, empty disables location lookups
//   - GEOIP_RELOAD_SCHEDULE: Cron expression for reloading the database (default: @daily)
//
// Telemetry:
//   - HIT_SINK: log, kafka, redis, amqp, sqs, sns, pubsub or postgres (default: log)
//   - HIT_TOPIC: Topic, stream, queue or table name (default: hits)
//   - HIT_BATCH_SIZE / HIT_CONSUMERS / HIT_MAX_WAIT: Batching queue tuning (default: 100 / 4 / 1s)
//   - SESSION_TTL: Window during which repeated clicks count as one session (default: 30m)
//   - KAFKA_BROKERS, AMQP_URL, AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
//     SQS_QUEUE_URL, SNS_TOPIC_ARN, GCP_PROJECT_ID, GCP_CREDENTIALS_FILE, POSTGRES_URL:
//     Sink connection settings, required by the matching HIT_SINK
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/utils"
)

// Store kinds.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Hit sink kinds.
const (
	SinkLog      = "log"
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
	SinkAMQP     = "amqp"
	SinkSQS      = "sqs"
	SinkSNS      = "sns"
	SinkPubSub   = "pubsub"
	SinkPostgres = "postgres"
)

// Config holds every setting the gateway reads at startup.
//
// The configuration is loaded with Load() and must be validated with
// Validate() before use.
type Config struct {
	LogLevel string

	// Listeners
	HTTPAddrs       []string      `validate:"dive,hostname_port"`
	TLSAddrs        []string      `validate:"dive,hostname_port"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Stores
	StoreKind          string `validate:"oneof=redis memory"`
	StoreSeedFile      string
	RedisAddress       string
	RedisPassword      string
	RedisDB            int           `validate:"min=0,max=15"`
	RedisPoolSize      int           `validate:"min=1"`
	BreakerMaxFailures int           `validate:"min=1"`
	BreakerTimeout     time.Duration `validate:"gt=0"`

	// Caches
	CacheCapacity    int           `validate:"min=1"`
	RouteCacheTTL    time.Duration `validate:"gt=0"`
	RouteCacheTTI    time.Duration `validate:"gte=0"`
	CertCacheTTL     time.Duration `validate:"gt=0"`
	SettingsCacheTTL time.Duration `validate:"gt=0"`

	// Routing
	RootIndexURL     string `validate:"required"`
	RootProxy        bool
	NotFoundURL      string
	DebugTokenSecret string

	// Security
	EncryptionKey string

	// GeoIP
	GeoIPPath           string
	GeoIPReloadSchedule string

	// Telemetry
	HitSink      string        `validate:"oneof=log kafka redis amqp sqs sns pubsub postgres"`
	HitTopic     string        `validate:"required"`
	HitBatchSize int           `validate:"min=1"`
	HitConsumers int           `validate:"min=1"`
	HitMaxWait   time.Duration `validate:"gt=0"`
	SessionTTL   time.Duration `validate:"gt=0"`
	KafkaBrokers []string
	AMQPURL      string
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	SQSQueueURL  string
	SNSTopicARN  string
	GCPProjectID string
	GCPCredsFile string
	PostgresURL  string

	// parse problems found by Load, reported by Validate
	loadErrs []string
}

// Load creates a Config from environment variables, falling back to
// defaults for unset variables. Malformed numbers and durations are kept at
// their defaults and reported by Validate.
func Load() *Config {
	c := &Config{}

	c.LogLevel = getEnv("LOG_LEVEL", "info")

	c.HTTPAddrs = getListEnv("HTTP_ADDRS", ":8080")
	c.TLSAddrs = getListEnv("TLS_ADDRS", "")
	c.RequestTimeout = c.getDurationEnv("REQUEST_TIMEOUT", 5*time.Second)
	c.ShutdownTimeout = c.getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second)

	c.StoreKind = strings.ToLower(getEnv("STORE_KIND", StoreRedis))
	c.StoreSeedFile = getEnv("STORE_SEED_FILE", "")
	c.RedisAddress = getEnv("REDIS_ADDRESS", "localhost:6379")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.RedisPoolSize = c.getIntEnv("REDIS_POOL_SIZE", 10)
	c.BreakerMaxFailures = c.getIntEnv("BREAKER_MAX_FAILURES", 5)
	c.BreakerTimeout = c.getDurationEnv("BREAKER_TIMEOUT", 30*time.Second)

	c.CacheCapacity = c.getIntEnv("CACHE_CAPACITY", 100_000)
	c.RouteCacheTTL = c.getDurationEnv("ROUTE_CACHE_TTL", 5*time.Minute)
	c.RouteCacheTTI = c.getDurationEnv("ROUTE_CACHE_TTI", time.Minute)
	c.CertCacheTTL = c.getDurationEnv("CERT_CACHE_TTL", time.Hour)
	c.SettingsCacheTTL = c.getDurationEnv("SETTINGS_CACHE_TTL", 5*time.Minute)

	c.RootIndexURL = getEnv("ROOT_INDEX_URL", "https://{host}/index.html")
	c.RootProxy = getBoolEnv("ROOT_PROXY", false)
	c.NotFoundURL = getEnv("NOT_FOUND_URL", "")
	c.DebugTokenSecret = getEnv("DEBUG_TOKEN_SECRET", "")

	c.EncryptionKey = getEnv("CONFIG_ENCRYPTION_KEY", "")

	c.GeoIPPath = getEnv("GEOIP_DB_PATH", "")
	c.GeoIPReloadSchedule = getEnv("GEOIP_RELOAD_SCHEDULE", "@daily")

	c.HitSink = strings.ToLower(getEnv("HIT_SINK", SinkLog))
	c.HitTopic = getEnv("HIT_TOPIC", "hits")
	c.HitBatchSize = c.getIntEnv("HIT_BATCH_SIZE", 100)
	c.HitConsumers = c.getIntEnv("HIT_CONSUMERS", 4)
	c.HitMaxWait = c.getDurationEnv("HIT_MAX_WAIT", time.Second)
	c.SessionTTL = c.getDurationEnv("SESSION_TTL", 30*time.Minute)
	c.KafkaBrokers = getListEnv("KAFKA_BROKERS", "")
	c.AMQPURL = getEnv("AMQP_URL", "")
	c.AWSRegion = getEnv("AWS_REGION", "us-east-1")
	c.AWSAccessKey = getEnv("AWS_ACCESS_KEY_ID", "")
	c.AWSSecretKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	c.SQSQueueURL = getEnv("SQS_QUEUE_URL", "")
	c.SNSTopicARN = getEnv("SNS_TOPIC_ARN", "")
	c.GCPProjectID = getEnv("GCP_PROJECT_ID", "")
	c.GCPCredsFile = getEnv("GCP_CREDENTIALS_FILE", "")
	c.PostgresURL = getEnv("POSTGRES_URL", "")

	return c
}

// getEnv retrieves an environment variable or returns defaultValue when it
// is unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool spellings. Anything else yields
// defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blank items.
func getListEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.loadErrs = append(c.loadErrs, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return parsed
}

// getDurationEnv accepts Go durations plus the "d" and "w" units.
func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := utils.ParseDuration(value)
	if err != nil {
		c.loadErrs = append(c.loadErrs, fmt.Sprintf("%s must be a duration, got %q", key, value))
		return defaultValue
	}
	return parsed
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field formats, ranges and cross-field requirements.
//
// This method checks:
//   - Values that failed to parse during Load
//   - Struct tag rules (ranges, enumerations, listen address formats)
//   - At least one listener
//   - Settings required by the selected store kind and hit sink
//   - URL templates and the encryption key length
func (c *Config) Validate() error {
	if len(c.loadErrs) > 0 {
		return errors.ConfigError(strings.Join(c.loadErrs, "; "))
	}

	if err := validate.Struct(c); err != nil {
		return errors.ConfigError(describeValidation(err))
	}

	if len(c.HTTPAddrs) == 0 && len(c.TLSAddrs) == 0 {
		return errors.ConfigError("at least one of HTTP_ADDRS or TLS_ADDRS is required")
	}

	if c.StoreKind == StoreRedis && c.RedisAddress == "" {
		return errors.ConfigError("REDIS_ADDRESS is required when STORE_KIND=redis")
	}

	if err := checkTemplate("ROOT_INDEX_URL", c.RootIndexURL); err != nil {
		return err
	}
	if c.NotFoundURL != "" {
		if err := checkTemplate("NOT_FOUND_URL", c.NotFoundURL); err != nil {
			return err
		}
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return errors.ConfigError("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	return c.validateSink()
}

func (c *Config) validateSink() error {
	required := map[string][]struct {
		name  string
		value bool
	}{
		SinkKafka:    {{"KAFKA_BROKERS", len(c.KafkaBrokers) > 0}},
		SinkRedis:    {{"REDIS_ADDRESS", c.RedisAddress != ""}},
		SinkAMQP:     {{"AMQP_URL", c.AMQPURL != ""}},
		SinkSQS:      {{"AWS_REGION", c.AWSRegion != ""}, {"SQS_QUEUE_URL", c.SQSQueueURL != ""}},
		SinkSNS:      {{"AWS_REGION", c.AWSRegion != ""}, {"SNS_TOPIC_ARN", c.SNSTopicARN != ""}},
		SinkPubSub:   {{"GCP_PROJECT_ID", c.GCPProjectID != ""}},
		SinkPostgres: {{"POSTGRES_URL", c.PostgresURL != ""}},
	}
	for _, field := range required[c.HitSink] {
		if !field.value {
			return errors.ConfigError(fmt.Sprintf("%s is required when HIT_SINK=%s", field.name, c.HitSink))
		}
	}
	return nil
}

// checkTemplate ensures a {host} template expands to an absolute URL.
func checkTemplate(key, template string) error {
	expanded := strings.ReplaceAll(template, "{host}", "example.com")
	u, err := url.ParseRequestURI(expanded)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigError(fmt.Sprintf("%s must be an absolute URL template, got %q", key, template))
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
