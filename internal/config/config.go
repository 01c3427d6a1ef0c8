package config

import (
	"fmt"
	"strconv"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Sale      SaleConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"flashsale_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// RedisConfig holds coordination-store connection configuration.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	PoolSize int    `envconfig:"REDIS_POOL_SIZE" default:"20"`
}

// QueueConfig holds job queue and worker pool configuration.
type QueueConfig struct {
	WorkerPoolSize    int `envconfig:"WORKER_POOL_SIZE" default:"10"`
	MaxAttempts       int `envconfig:"JOB_MAX_ATTEMPTS" default:"3"`
	BaseBackoffMillis int `envconfig:"JOB_BASE_BACKOFF_MS" default:"2000"`
	LeaseSeconds      int `envconfig:"JOB_LEASE_SECONDS" default:"30"`
	RemoveOnComplete  int `envconfig:"JOB_REMOVE_ON_COMPLETE" default:"100"`
	RemoveOnFail      int `envconfig:"JOB_REMOVE_ON_FAIL" default:"50"`
}

// RateLimitConfig holds admission-gateway rate limiting configuration.
type RateLimitConfig struct {
	MaxAttemptsPerMinute int `envconfig:"RATE_LIMIT_MAX_ATTEMPTS" default:"10"`
	WindowSeconds        int `envconfig:"RATE_LIMIT_WINDOW_SECONDS" default:"60"`
}

// SaleConfig holds sale-status cache and lifecycle ticker configuration.
type SaleConfig struct {
	StatusCacheTTLSeconds int `envconfig:"SALE_STATUS_CACHE_TTL_SECONDS" default:"30"`
	StatsCacheTTLSeconds  int `envconfig:"SALE_STATS_CACHE_TTL_SECONDS" default:"300"`
	TickerIntervalSeconds int `envconfig:"LIFECYCLE_TICKER_INTERVAL_SECONDS" default:"5"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load parses environment variables into the Config struct and validates them.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	// Validate server port
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return fmt.Errorf("SERVER_PORT must be a valid number: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	// Validate shutdown timeout
	if c.Server.ShutdownTimeout < 1 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be at least 1 second, got %d", c.Server.ShutdownTimeout)
	}
	if c.Server.ShutdownTimeout > 300 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must not exceed 300 seconds, got %d", c.Server.ShutdownTimeout)
	}

	if c.DB.Host == "" {
		return fmt.Errorf("DB_HOST cannot be empty")
	}
	if c.DB.User == "" {
		return fmt.Errorf("DB_USER cannot be empty")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("DB_NAME cannot be empty")
	}

	// Validate DB port
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.DB.Port)
	}

	// Validate connection pool sizes
	if c.DB.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DB.MaxConns)
	}
	if c.DB.MinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be at least 0, got %d", c.DB.MinConns)
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DB.MinConns, c.DB.MaxConns)
	}

	// Validate SSL mode
	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[c.DB.SSLMode] {
		return fmt.Errorf("DB_SSLMODE must be one of: disable, allow, prefer, require, verify-ca, verify-full; got %q", c.DB.SSLMode)
	}

	if c.Queue.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.Queue.WorkerPoolSize)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("JOB_MAX_ATTEMPTS must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Queue.LeaseSeconds < 1 {
		return fmt.Errorf("JOB_LEASE_SECONDS must be at least 1, got %d", c.Queue.LeaseSeconds)
	}

	if c.RateLimit.MaxAttemptsPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_ATTEMPTS must be at least 1, got %d", c.RateLimit.MaxAttemptsPerMinute)
	}
	if c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be at least 1, got %d", c.RateLimit.WindowSeconds)
	}

	return nil
}

// WarnIfDefaultCredentials returns human-readable warnings for any
// production-unsafe default still in effect. Intended to be logged once at
// startup, not treated as a hard validation failure.
func (c *Config) WarnIfDefaultCredentials() []string {
	var warnings []string
	if c.DB.Password == "postgres" {
		warnings = append(warnings, "DB_PASSWORD is set to the insecure default; change it before deploying")
	}
	if c.DB.User == "postgres" {
		warnings = append(warnings, "DB_USER is set to the default superuser name; consider a dedicated role")
	}
	if c.DB.SSLMode == "disable" {
		warnings = append(warnings, "DB_SSLMODE is disabled; use require or verify-full in production")
	}
	return warnings
}
