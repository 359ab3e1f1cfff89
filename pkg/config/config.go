package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/fedgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Tokens        TokenConfig
	Providers     ProvidersConfig
	SAML          SAMLConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// RedisConfig holds Redis settings for rate limiting
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TokenConfig holds signing secrets and lifetimes
type TokenConfig struct {
	StateSecret   string
	StateTTL      time.Duration
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// OAuthProviderConfig holds one provider's client credentials
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether the provider has credentials set
func (c OAuthProviderConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// ProvidersConfig holds all OAuth provider credentials
type ProvidersConfig struct {
	Google    OAuthProviderConfig
	Microsoft OAuthProviderConfig
	GitHub    OAuthProviderConfig
}

// SAMLConfig holds process-wide SAML settings; per-tenant IdP settings live
// in the tenant store
type SAMLConfig struct {
	Enabled bool
}

// RateLimitConfig holds initiate-endpoint rate limit settings
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("FEDGATE_HOST", "0.0.0.0"),
			Port:            getEnv("FEDGATE_PORT", "8080"),
			BaseURL:         getEnv("FEDGATE_BASE_URL", "http://localhost:8080"),
			ReadTimeout:     getEnvDuration("FEDGATE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("FEDGATE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("FEDGATE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("FEDGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("FEDGATE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("FEDGATE_POSTGRES_URL", ""),
			MaxConns: getEnvInt("FEDGATE_POSTGRES_MAX_CONNS", 25),
			MinConns: getEnvInt("FEDGATE_POSTGRES_MIN_CONNS", 5),
			Timeout:  getEnvDuration("FEDGATE_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("FEDGATE_REDIS_ADDR", ""),
			Password: getEnv("FEDGATE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("FEDGATE_REDIS_DB", 0),
		},
		Tokens: TokenConfig{
			StateSecret:   getEnv("FEDGATE_STATE_SECRET", ""),
			StateTTL:      getEnvDuration("FEDGATE_STATE_TTL", 10*time.Minute),
			AccessSecret:  getEnv("FEDGATE_ACCESS_SECRET", ""),
			RefreshSecret: getEnv("FEDGATE_REFRESH_SECRET", ""),
			AccessTTL:     getEnvDuration("FEDGATE_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getEnvDuration("FEDGATE_REFRESH_TTL", 7*24*time.Hour),
			Issuer:        getEnv("FEDGATE_TOKEN_ISSUER", "fedgate"),
		},
		Providers: ProvidersConfig{
			Google: OAuthProviderConfig{
				ClientID:     getEnv("FEDGATE_GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("FEDGATE_GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("FEDGATE_GOOGLE_REDIRECT_URL", ""),
			},
			Microsoft: OAuthProviderConfig{
				ClientID:     getEnv("FEDGATE_MICROSOFT_CLIENT_ID", ""),
				ClientSecret: getEnv("FEDGATE_MICROSOFT_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("FEDGATE_MICROSOFT_REDIRECT_URL", ""),
			},
			GitHub: OAuthProviderConfig{
				ClientID:     getEnv("FEDGATE_GITHUB_CLIENT_ID", ""),
				ClientSecret: getEnv("FEDGATE_GITHUB_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("FEDGATE_GITHUB_REDIRECT_URL", ""),
			},
		},
		SAML: SAMLConfig{
			Enabled: getEnvBool("FEDGATE_SAML_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("FEDGATE_RATELIMIT_ENABLED", false),
			Requests: getEnvInt("FEDGATE_RATELIMIT_REQUESTS", 30),
			Window:   getEnvDuration("FEDGATE_RATELIMIT_WINDOW", time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("FEDGATE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("FEDGATE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Tokens.StateSecret == "" {
		return fmt.Errorf("state signing secret is required")
	}
	if c.Tokens.AccessSecret == "" || c.Tokens.RefreshSecret == "" {
		return fmt.Errorf("access and refresh signing secrets are required")
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return fmt.Errorf("access and refresh signing secrets must be different")
	}
	if c.RateLimit.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when rate limiting is enabled")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
