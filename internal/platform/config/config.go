// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures every setting cmd/server and doctrackctl need.
type Server struct {
	Addr            string        `env:"DOCTRACK_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"DOCTRACK_LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"DOCTRACK_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"DOCTRACK_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TxTimeout       time.Duration `env:"DOCTRACK_TX_TIMEOUT" envDefault:"5s"`

	JWTSigningKey string `env:"DOCTRACK_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"DOCTRACK_JWT_ISSUER" envDefault:"doctrack"`
	JWTAudience   string `env:"DOCTRACK_JWT_AUDIENCE" envDefault:"doctrack-api"`
	AdminToken    string `env:"DOCTRACK_ADMIN_TOKEN"`

	// Statuses and DocumentTypes override the built-in vocabulary when set.
	Statuses      []string `env:"DOCTRACK_STATUSES" envSeparator:","`
	DocumentTypes []string `env:"DOCTRACK_DOCUMENT_TYPES" envSeparator:","`

	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	Analytics AnalyticsConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig selects Postgres. An empty URL runs the in-memory stores.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig enables the analytics report cache when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables publishing routing events when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"doctrack.routing-events"`
	ClientID          string   `env:"KAFKA_CLIENT_ID" envDefault:"doctrack"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
}

type OutboxConfig struct {
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	// Consecutive publish failures before the worker pauses, and the gap
	// between probes while paused.
	BreakerThreshold int           `env:"OUTBOX_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"OUTBOX_BREAKER_COOLDOWN" envDefault:"30s"`
}

type AnalyticsConfig struct {
	CacheTTL time.Duration `env:"ANALYTICS_CACHE_TTL" envDefault:"60s"`
}

// TelemetryConfig exports traces over OTLP/HTTP when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"doctrack"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1"`
}

// FromEnv builds a Server config from the process environment.
func FromEnv() (Server, error) {
	return parse(env.Options{})
}

// FromMap builds a Server config from vars only. Tests use it.
func FromMap(vars map[string]string) (Server, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot run with.
func (c Server) Validate() error {
	var errs []error
	if c.TxTimeout <= 0 {
		errs = append(errs, errors.New("DOCTRACK_TX_TIMEOUT must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("DOCTRACK_REQUEST_TIMEOUT must be positive"))
	}
	if c.JWTSigningKey == "" {
		errs = append(errs, errors.New("DOCTRACK_JWT_SIGNING_KEY is required"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_RATIO must be within [0, 1]"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether durable storage is configured.
func (c Server) UsesPostgres() bool { return c.Database.URL != "" }
