// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Database pool sizing. Zero keeps the repository defaults.
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"2"`

	// Apply embedded migrations before serving.
	MigrateOnStart bool `env:"MIGRATE_ON_START" envDefault:"false"`

	// Accept ptl_test_ keys. Always on outside production.
	AllowTestKeys bool `env:"ALLOW_TEST_KEYS" envDefault:"false"`

	// Host used to build public analytics share links.
	AppDomain string `env:"APP_DOMAIN" envDefault:"portalo.so"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled   bool    `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	TrackRateLimitEnabled bool    `env:"TRACK_RATE_LIMIT_ENABLED" envDefault:"true"`
	TrackRateLimitRPS     float64 `env:"TRACK_RATE_LIMIT_RPS" envDefault:"10"`
	TrackRateLimitBurst   int     `env:"TRACK_RATE_LIMIT_BURST" envDefault:"30"`

	// Analytics
	LiveInterval   time.Duration `env:"LIVE_POLL_INTERVAL" envDefault:"5s"`
	LiveBatchLimit int           `env:"LIVE_BATCH_LIMIT" envDefault:"20"`
	ExportRowLimit int           `env:"EXPORT_ROW_LIMIT" envDefault:"10000"`

	// Caches
	PlanCacheTTL  time.Duration `env:"PLAN_CACHE_TTL" envDefault:"1m"`
	LinkCacheSize int           `env:"LINK_CACHE_SIZE" envDefault:"1024"`
	LinkCacheTTL  time.Duration `env:"LINK_CACHE_TTL" envDefault:"5m"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
	// Origins allowed to call /public/track. Empty allows any origin.
	TrackAllowedOrigins string `env:"TRACK_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limits in bytes
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	MaxTrackBodySize   int64 `env:"MAX_TRACK_BODY_SIZE" envDefault:"16384"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// TestKeysAllowed reports whether ptl_test_ API keys authenticate.
func (c *Config) TestKeysAllowed() bool {
	return c.AllowTestKeys || !c.IsProduction()
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetTrackAllowedOrigins parses TRACK_ALLOWED_ORIGINS.
func (c *Config) GetTrackAllowedOrigins() []string {
	return splitList(c.TrackAllowedOrigins)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	origins := strings.Split(raw, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LiveInterval <= 0 {
		return nil, fmt.Errorf("LIVE_POLL_INTERVAL must be positive, got %s", cfg.LiveInterval)
	}
	if cfg.TrackRateLimitEnabled && (cfg.TrackRateLimitRPS <= 0 || cfg.TrackRateLimitBurst < 1) {
		return nil, fmt.Errorf("TRACK_RATE_LIMIT_RPS and TRACK_RATE_LIMIT_BURST must be positive")
	}
	return cfg, nil
}
