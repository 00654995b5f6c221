package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the meshcover server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Elevation   ElevationConfig
	Maintenance MaintenanceConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	ListPageSize int
}

type ElevationConfig struct {
	BaseURL string
	Timeout time.Duration
}

// MaintenanceConfig tunes the clean-up and migration operations.
type MaintenanceConfig struct {
	BatchCap          int
	StaleAfter        time.Duration
	OverlapMiles      float64
	DeleteConcurrency int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MESHCOVER_PORT", 8080),
			Env:  envString("MESHCOVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			ListPageSize: envInt("KV_LIST_PAGE_SIZE", 1000),
		},
		Elevation: ElevationConfig{
			BaseURL: envString("ELEVATION_BASE_URL", "https://api.opentopodata.org/v1/ned10m"),
			Timeout: envDuration("ELEVATION_TIMEOUT", 10*time.Second),
		},
		Maintenance: MaintenanceConfig{
			BatchCap:          envInt("MAINTENANCE_BATCH_CAP", 500),
			StaleAfter:        envDuration("MAINTENANCE_STALE_AFTER", 10*24*time.Hour),
			OverlapMiles:      envFloat("MAINTENANCE_OVERLAP_MILES", 0.25),
			DeleteConcurrency: envInt("MAINTENANCE_DELETE_CONCURRENCY", 16),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Redis.ListPageSize <= 0 {
		return fmt.Errorf("KV_LIST_PAGE_SIZE must be positive, got %d", c.Redis.ListPageSize)
	}

	if !strings.HasPrefix(c.Elevation.BaseURL, "http://") && !strings.HasPrefix(c.Elevation.BaseURL, "https://") {
		return fmt.Errorf("ELEVATION_BASE_URL must start with http:// or https://, got %q", c.Elevation.BaseURL)
	}

	if c.Maintenance.BatchCap <= 0 {
		return fmt.Errorf("MAINTENANCE_BATCH_CAP must be positive, got %d", c.Maintenance.BatchCap)
	}
	if c.Maintenance.StaleAfter <= 0 {
		return fmt.Errorf("MAINTENANCE_STALE_AFTER must be positive, got %s", c.Maintenance.StaleAfter)
	}
	if c.Maintenance.OverlapMiles <= 0 {
		return fmt.Errorf("MAINTENANCE_OVERLAP_MILES must be positive, got %v", c.Maintenance.OverlapMiles)
	}
	if c.Maintenance.DeleteConcurrency <= 0 {
		return fmt.Errorf("MAINTENANCE_DELETE_CONCURRENCY must be positive, got %d", c.Maintenance.DeleteConcurrency)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
