// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	URL      string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the DB_* parts.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type DeliveryConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
}

type DispatchConfig struct {
	BatchSize   int
	SendSpacing time.Duration
	Interval    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type Config struct {
	HTTPAddr string
	AMQPURL  string
	DB       DBConfig
	Delivery DeliveryConfig
	Dispatch DispatchConfig
	Log      LogConfig
}

// MaxBatchSize caps a periodic dispatch pass.
const MaxBatchSize = 10

// Load reads .env (if present) and then the process environment.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil
	return FromEnv(os.Getenv, dotenv)
}

// FromEnv builds a Config from a lookup function. The bool result echoes
// whether a .env file was loaded so callers can log it.
func FromEnv(getenv func(string) string, dotenv bool) (*Config, bool, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		HTTPAddr: get("HTTP_ADDR", ":8080"),
		AMQPURL:  get("AMQP_URL", ""),
		DB: DBConfig{
			URL:      get("DATABASE_URL", ""),
			User:     get("DB_USER", "postgres"),
			Password: get("DB_PASSWORD", ""),
			Host:     get("DB_HOST", "localhost"),
			Port:     get("DB_PORT", "5432"),
			Name:     get("DB_NAME", "campaigns"),
			SSLMode:  get("DB_SSLMODE", "disable"),
		},
		Delivery: DeliveryConfig{
			BaseURL: strings.TrimRight(get("DELIVERY_BASE_URL", "https://wasenderapi.com/api"), "/"),
			APIKey:  get("DELIVERY_API_KEY", ""),
		},
		Log: LogConfig{
			Level:  get("LOG_LEVEL", "info"),
			Format: get("LOG_FORMAT", "console"),
		},
	}

	var err error
	if cfg.Delivery.Timeout, err = parseDuration(get("DELIVERY_TIMEOUT", "30s")); err != nil {
		return nil, dotenv, fmt.Errorf("DELIVERY_TIMEOUT: %w", err)
	}
	if cfg.Delivery.MaxAttempts, err = parsePositive(get("DELIVERY_MAX_ATTEMPTS", "3")); err != nil {
		return nil, dotenv, fmt.Errorf("DELIVERY_MAX_ATTEMPTS: %w", err)
	}
	if cfg.Dispatch.BatchSize, err = parsePositive(get("DISPATCH_BATCH_SIZE", "10")); err != nil {
		return nil, dotenv, fmt.Errorf("DISPATCH_BATCH_SIZE: %w", err)
	}
	if cfg.Dispatch.BatchSize > MaxBatchSize {
		cfg.Dispatch.BatchSize = MaxBatchSize
	}
	if cfg.Dispatch.SendSpacing, err = parseDuration(get("DISPATCH_SEND_SPACING", "2s")); err != nil {
		return nil, dotenv, fmt.Errorf("DISPATCH_SEND_SPACING: %w", err)
	}
	if cfg.Dispatch.Interval, err = parseDuration(get("DISPATCH_INTERVAL", "30s")); err != nil {
		return nil, dotenv, fmt.Errorf("DISPATCH_INTERVAL: %w", err)
	}
	if cfg.Dispatch.Interval <= 0 {
		return nil, dotenv, fmt.Errorf("DISPATCH_INTERVAL: must be positive")
	}
	return cfg, dotenv, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
