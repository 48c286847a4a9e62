package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/benvon/tag-a-log/internal/services/oidc"
)

// Store drivers
const (
	StoreDriverBadger   = "badger"
	StoreDriverPostgres = "postgres"
)

const minSessionKeyLength = 32

// Config holds application configuration
type Config struct {
	ServerPort        string
	BaseURL           string
	FrontendURL       string
	EnableHSTS        bool
	StoreDriver       string
	BadgerPath        string
	DatabaseURL       string
	RedisURL          string
	RabbitMQURL       string
	RabbitMQPrefetch  int
	DLQRetention      time.Duration
	DLQGCInterval     time.Duration
	SessionSigningKey string
	SessionTTL        time.Duration
	OIDCIssuer        string
	OIDCJWKSURL       string
	OIDCClientID      string
	OIDCClientSecret  string
	OIDCRedirectURI   string
	RateLimit         string
	PurgeInterval     time.Duration
	ServerRunsPurge   bool
	WorkerDebugMode   bool
	WorkerMetricsPort string
	ServerDebugMode   bool
	OTELEnabled       bool
	OTELEndpoint      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:        getEnvBool("ENABLE_HSTS", false),
		StoreDriver:       getEnv("STORE_DRIVER", StoreDriverBadger),
		BadgerPath:        getEnv("BADGER_PATH", "data/tagalog"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:  getEnvInt("RABBITMQ_PREFETCH", 1),
		DLQRetention:      getEnvDuration("DLQ_RETENTION", 24*time.Hour),
		DLQGCInterval:     getEnvDuration("DLQ_GC_INTERVAL", time.Hour),
		SessionSigningKey: getEnv("SESSION_SIGNING_KEY", ""),
		SessionTTL:        getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		OIDCIssuer:        getEnv("OIDC_ISSUER", ""),
		OIDCJWKSURL:       getEnv("OIDC_JWKS_URL", ""),
		OIDCClientID:      getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:  getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURI:   getEnv("OIDC_REDIRECT_URI", ""),
		RateLimit:         getEnv("RATE_LIMIT", "20-S"),
		PurgeInterval:     getEnvDuration("PURGE_INTERVAL", 24*time.Hour),
		ServerRunsPurge:   getEnvBool("SERVER_RUN_PURGE", false),
		WorkerDebugMode:   getEnvBool("WORKER_DEBUG_MODE", false),
		WorkerMetricsPort: getEnv("WORKER_METRICS_PORT", ""),
		ServerDebugMode:   getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:       getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	switch cfg.StoreDriver {
	case StoreDriverBadger:
		if cfg.BadgerPath == "" {
			return nil, fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (expected %s or %s)", cfg.StoreDriver, StoreDriverBadger, StoreDriverPostgres)
	}

	if cfg.PurgeInterval <= 0 {
		return nil, fmt.Errorf("PURGE_INTERVAL must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}

	return cfg, nil
}

// ValidateServer checks the settings only the API server needs
func (c *Config) ValidateServer() error {
	if len(c.SessionSigningKey) < minSessionKeyLength {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least %d bytes", minSessionKeyLength)
	}
	if c.OIDCIssuer != "" && c.OIDCClientID == "" {
		return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC_ISSUER is set")
	}
	return nil
}

// OIDC returns the federated identity provider settings
func (c *Config) OIDC() oidc.Config {
	return oidc.Config{
		Issuer:       c.OIDCIssuer,
		JWKSURL:      c.OIDCJWKSURL,
		ClientID:     c.OIDCClientID,
		ClientSecret: c.OIDCClientSecret,
		RedirectURI:  c.OIDCRedirectURI,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
