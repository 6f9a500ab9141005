// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Identity provider (Clerk)
	ClerkJWKSURL   string        `env:"CLERK_JWKS_URL,required"`
	ClerkSecretKey string        `env:"CLERK_SECRET_KEY,required"`
	ClerkAPIURL    string        `env:"CLERK_API_URL" envDefault:"https://api.clerk.com/v1"`
	ClerkIssuer    string        `env:"CLERK_ISSUER" envDefault:""`
	ClerkAudience  string        `env:"CLERK_AUDIENCE" envDefault:""`
	RoleCacheTTL   time.Duration `env:"ROLE_CACHE_TTL" envDefault:"1m"`

	// Trust X-User-Id / X-User-Role headers when no session token is present.
	// Never enable outside local development.
	AuthHeaderFallback bool `env:"AUTH_HEADER_FALLBACK" envDefault:"false"`

	// Provisioning webhook (svix-signed)
	WebhookSecret    string        `env:"WEBHOOK_SECRET,required"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`

	// Subscription expiry sweep, cron syntax. Empty disables the job.
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"@every 5m"`

	// Domain events: "redis", "rabbitmq" or "log"
	EventsBackend  string `env:"EVENTS_BACKEND" envDefault:"redis"`
	AMQPURL        string `env:"AMQP_URL" envDefault:""`
	EventsExchange string `env:"EVENTS_EXCHANGE" envDefault:"tasklane_events"`

	// Rate limiting
	RateLimitAPIEnabled     bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM         int  `env:"RATE_LIMIT_API_RPM" envDefault:"120"`
	RateLimitAPIBurst       int  `env:"RATE_LIMIT_API_BURST" envDefault:"30"`
	RateLimitWebhookEnabled bool `env:"RATE_LIMIT_WEBHOOK_ENABLED" envDefault:"true"`
	RateLimitWebhookRPS     int  `env:"RATE_LIMIT_WEBHOOK_RPS" envDefault:"20"`
	RateLimitWebhookBurst   int  `env:"RATE_LIMIT_WEBHOOK_BURST" envDefault:"40"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.EventsBackend {
	case "redis", "log":
	case "rabbitmq":
		if c.AMQPURL == "" {
			return errors.New("AMQP_URL is required when EVENTS_BACKEND=rabbitmq")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}
	if c.AuthHeaderFallback && c.IsProduction() {
		return errors.New("AUTH_HEADER_FALLBACK cannot be enabled in production")
	}
	return nil
}

// Load reads an optional .env file, parses environment variables and
// returns a Config. Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
