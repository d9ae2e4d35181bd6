package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage backends selectable with STORE_DRIVER.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"`
	APIKey      string `envconfig:"API_KEY" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" default:"change-me"`
	HttpServer  ServerConfig
	GrpcServer  GrpcServerConfig
	Postgres    PostgresConfig
	Metrics     MetricsConfig
	Kafka       KafkaConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port            string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead     time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle     time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// GrpcServerConfig holds gRPC server-specific configurations. An empty port disables gRPC.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// MetricsConfig controls the Prometheus endpoint. A non-empty token requires
// "Authorization: Bearer <token>" on /metrics.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Token   string `envconfig:"METRICS_TOKEN"`
}

// KafkaConfig enables product event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"productflow.products"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return errors.New("config: POSTGRES_USER and POSTGRES_DBNAME are required with STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("config: KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// Enabled reports whether any broker is configured.
func (kc KafkaConfig) Enabled() bool {
	return len(kc.Brokers) > 0
}

// Load reads an optional .env file (files are tried in order, missing ones are
// skipped) and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
