package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the portalsync server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Portal   PortalConfig
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
	URL string
}

// PortalConfig is the dispatcher and feed policy. Retry and backoff values
// are operator policy, not provider contracts, so all of them are tunable.
type PortalConfig struct {
	CallTimeout  time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	FeedBaseURL  string
	FeedCacheTTL time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PORTALSYNC_PORT", 8080),
			Env:  envString("PORTALSYNC_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Portal: PortalConfig{
			CallTimeout:  envDuration("PORTAL_CALL_TIMEOUT", 30*time.Second),
			MaxAttempts:  envInt("PORTAL_MAX_ATTEMPTS", 5),
			BackoffBase:  envDuration("PORTAL_BACKOFF_BASE", 30*time.Second),
			BackoffCap:   envDuration("PORTAL_BACKOFF_CAP", time.Hour),
			FeedBaseURL:  os.Getenv("PORTAL_FEED_BASE_URL"),
			FeedCacheTTL: envDuration("PORTAL_FEED_CACHE_TTL", 2*time.Minute),
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

	if c.Portal.FeedBaseURL == "" {
		return fmt.Errorf("PORTAL_FEED_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Portal.FeedBaseURL, "http://") && !strings.HasPrefix(c.Portal.FeedBaseURL, "https://") {
		return fmt.Errorf("PORTAL_FEED_BASE_URL must start with http:// or https://, got %q", c.Portal.FeedBaseURL)
	}

	if c.Portal.MaxAttempts < 1 {
		return fmt.Errorf("PORTAL_MAX_ATTEMPTS must be at least 1, got %d", c.Portal.MaxAttempts)
	}
	if c.Portal.BackoffBase <= 0 {
		return fmt.Errorf("PORTAL_BACKOFF_BASE must be positive")
	}
	if c.Portal.BackoffCap < c.Portal.BackoffBase {
		return fmt.Errorf("PORTAL_BACKOFF_CAP must not be smaller than PORTAL_BACKOFF_BASE")
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
