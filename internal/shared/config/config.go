package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers
const (
	StorageMongoDB = "mongodb"
	StorageSQLite  = "sqlite"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	MongoDB    MongoDBConfig
	SQLite     SQLiteConfig
	RabbitMQ   RabbitMQConfig
	Scheduler  SchedulerConfig
	Dispatcher DispatcherConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string `env:"SERVER_PORT" envDefault:"8084"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// StorageConfig selects the persistence driver
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"mongodb"`
}

// MongoDBConfig holds MongoDB configuration
type MongoDBConfig struct {
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE" envDefault:"smart_notifications"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"notifications.db"`
}

// RabbitMQConfig holds RabbitMQ configuration. An empty URL disables the
// platform event consumer and the cross-instance realtime relay.
type RabbitMQConfig struct {
	URL              string `env:"RABBITMQ_URL"`
	EventsExchange   string `env:"RABBITMQ_EVENTS_EXCHANGE" envDefault:"platform.events"`
	EventsQueue      string `env:"RABBITMQ_EVENTS_QUEUE" envDefault:"smart_notifications.events"`
	RealtimeExchange string `env:"RABBITMQ_REALTIME_EXCHANGE" envDefault:"notifications.realtime"`
}

// SchedulerConfig holds the digest scheduling loop timing
type SchedulerConfig struct {
	Enabled      bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	WakeInterval time.Duration `env:"SCHEDULER_WAKE_INTERVAL" envDefault:"5m"`
	Tolerance    time.Duration `env:"SCHEDULER_TOLERANCE" envDefault:"4m"`
	Workers      int           `env:"SCHEDULER_WORKERS" envDefault:"4"`
}

// DispatcherConfig holds delivery dispatcher configuration
type DispatcherConfig struct {
	Workers int           `env:"DISPATCH_WORKERS" envDefault:"4"`
	Timeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"5s"`
}

// RateLimitConfig holds per-tenant rate limiting configuration
type RateLimitConfig struct {
	PerTenant float64 `env:"RATE_LIMIT_PER_TENANT" envDefault:"100"`
	Burst     int     `env:"RATE_LIMIT_BURST" envDefault:"200"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMongoDB, StorageSQLite:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Dispatcher.Workers <= 0 {
		return errors.New("DISPATCH_WORKERS must be positive")
	}
	return ValidateSchedulerTiming(c.Scheduler.WakeInterval, c.Scheduler.Tolerance)
}

// ValidateSchedulerTiming enforces the relation between wake interval and
// firing tolerance. A daily digest target is matched when the wake time is
// within ±tolerance of it, so the matching window is 2*tolerance wide:
//   - 2*tolerance >= wake guarantees at least one wake lands in the window
//   - tolerance < wake guarantees at most two wakes land in it; the second is
//     dropped by the scheduler's per-day fired guard
func ValidateSchedulerTiming(wake, tolerance time.Duration) error {
	if wake <= 0 {
		return errors.New("SCHEDULER_WAKE_INTERVAL must be positive")
	}
	if tolerance <= 0 {
		return errors.New("SCHEDULER_TOLERANCE must be positive")
	}
	if tolerance >= wake {
		return fmt.Errorf("SCHEDULER_TOLERANCE (%s) must be shorter than SCHEDULER_WAKE_INTERVAL (%s)", tolerance, wake)
	}
	if 2*tolerance < wake {
		return fmt.Errorf("SCHEDULER_TOLERANCE (%s) too small for SCHEDULER_WAKE_INTERVAL (%s): digests could be missed", tolerance, wake)
	}
	return nil
}
