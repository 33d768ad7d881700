package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	App       AppConfig       `json:"app"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Tracing   TracingConfig   `json:"tracing"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AppConfig holds board-specific configuration.
type AppConfig struct {
	// PublicURL is the externally reachable base URL embedded in coupon
	// verify links (the address a QR scan opens).
	PublicURL string `json:"public_url"`
	// StoreName is the default store attributed to visits and fund entries.
	StoreName string `json:"store_name"`
	// CouponPrefix is the default coupon code prefix.
	CouponPrefix string `json:"coupon_prefix"`
	// AlertThresholdDays is the default inactivity alert threshold.
	AlertThresholdDays int `json:"alert_threshold_days"`
	// MetricsCacheTTLSeconds bounds staleness of the dashboard snapshot;
	// zero disables the cache.
	MetricsCacheTTLSeconds int `json:"metrics_cache_ttl_seconds"`
	// StrictIDs enables the collision re-draw on senior id generation.
	StrictIDs bool `json:"strict_ids"`
}

// RedisConfig holds cache backend configuration. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Environment string `json:"environment"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "",
		},
		Database: DatabaseConfig{
			Path: "./welfare_board.db",
		},
		App: AppConfig{
			PublicURL:              "http://localhost:8080",
			StoreName:              "",
			CouponPrefix:           "JEJU",
			AlertThresholdDays:     7,
			MetricsCacheTTLSeconds: 30,
			StrictIDs:              false,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "http://localhost:14268/api/traces",
			Environment: "development",
		},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	setString(&cfg.App.PublicURL, "PUBLIC_APP_URL")
	setString(&cfg.App.StoreName, "STORE_NAME")
	setString(&cfg.App.CouponPrefix, "COUPON_PREFIX")
	setInt(&cfg.App.AlertThresholdDays, "ALERT_THRESHOLD_DAYS")
	setInt(&cfg.App.MetricsCacheTTLSeconds, "METRICS_CACHE_TTL_SECONDS")
	setBool(&cfg.App.StrictIDs, "STRICT_IDS")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setString(&cfg.Tracing.Environment, "TRACING_ENVIRONMENT")
}

func setString(dest *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

func setInt(dest *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dest = i
		}
	}
}

func setBool(dest *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = strings.ToLower(value) == "true" || value == "1"
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.App.PublicURL == "" {
		return fmt.Errorf("public url is required")
	}
	if c.App.AlertThresholdDays <= 0 {
		return fmt.Errorf("alert threshold must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	return nil
}
