// Package config provides configuration structures and validation for the WirePOS service.
// It covers the HTTP server, the terminal gateway, the background pollers, the
// transaction store backends and every infrastructure dependency.
package config

import (
	"errors"
	"strings"
	"time"
)

// Store backends
const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

// Config holds the complete application configuration with settings for all components.
// It is validated once during application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Gateway     GatewayConfig
	Poller      PollerConfig
	Store       StoreConfig
	Redis       RedisConfig
	Recovery    RecoveryConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Kafka       KafkaConfig
	Tracing     TracingConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server and poller shutdown
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// GatewayConfig contains the terminal gateway client settings
type GatewayConfig struct {
	BaseURL  string
	DeviceID string // Authoritative terminal id sent to the gateway
	Timeout  time.Duration
	RPS      float64
	Burst    int
}

// PollerConfig controls per-transaction reconciliation
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	PoolSize    int // Maximum number of concurrently running pollers
}

// StoreConfig selects the transaction store backend
type StoreConfig struct {
	Backend   string
	Retention time.Duration // 0 keeps finished transactions forever
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// RecoveryConfig controls the resume and eviction job
type RecoveryConfig struct {
	Interval time.Duration
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	EventsTopic       string // Finalized transaction events
	CallbackTopic     string // Push-style terminal responses
	DLQTopic          string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
}

// TracingConfig contains OpenTelemetry exporter settings. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint string
	Insecure bool
}

// validate checks every section and reports all problems at once
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Gateway config
	if c.Gateway.BaseURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_BASE_URL is required")
	}
	if c.Gateway.DeviceID == "" {
		validationErrors = append(validationErrors, "GATEWAY_DEVICE_ID is required")
	}
	if c.Gateway.Timeout <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_TIMEOUT must be greater than 0")
	}
	if c.Gateway.RPS <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_RPS must be greater than 0")
	}
	if c.Gateway.Burst <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_BURST must be greater than 0")
	}

	// Validate Poller config
	if c.Poller.Interval <= 0 {
		validationErrors = append(validationErrors, "POLLER_INTERVAL must be greater than 0")
	}
	if c.Poller.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "POLLER_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Poller.PoolSize <= 0 {
		validationErrors = append(validationErrors, "POLLER_POOL_SIZE must be greater than 0")
	}

	// Validate Store config
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Redis.URL == "" {
			validationErrors = append(validationErrors, "REDIS_URL is required when STORE_BACKEND is redis")
		}
	default:
		validationErrors = append(validationErrors, "STORE_BACKEND must be one of memory, redis")
	}
	if c.Store.Retention < 0 {
		validationErrors = append(validationErrors, "STORE_RETENTION cannot be negative")
	}
	if c.Recovery.Interval <= 0 {
		validationErrors = append(validationErrors, "RECOVERY_INTERVAL must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	// Kafka is only checked when enabled
	if c.Kafka.Enabled {
		if c.Kafka.Brokers == "" {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
		}
		if c.Kafka.EventsTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required")
		}
		if c.Kafka.CallbackTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_CALLBACK_TOPIC is required")
		}
		if c.Kafka.ConsumerGroup == "" {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
		}
		if c.Kafka.MinBytes <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
		}
		if c.Kafka.MaxBytes <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
		}
		if c.Kafka.MaxWait <= 0 {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
		}
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
