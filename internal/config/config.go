// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server. All fields have defaults
// except the JWT secret, which must be present at startup.
type Config struct {
	Server struct {
		Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
		Port            int           `env:"SERVER_PORT,default=8080"`
		ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	}

	Log struct {
		Level  string `env:"LOG_LEVEL,default=info"`
		Format string `env:"LOG_FORMAT,default=json"`
	}

	Auth struct {
		JWTSecret string        `env:"JWT_SECRET"`
		TokenTTL  time.Duration `env:"TOKEN_TTL,default=168h"` // 7 days
	}

	RateLimit struct {
		MaxRequests   int           `env:"RATE_LIMIT_MAX_REQUESTS,default=100"`
		Window        time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
		SweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL,default=5m"`
		// RedisAddr switches admission control to the shared Redis
		// limiter when set. Empty means in-process.
		RedisAddr string `env:"RATE_LIMIT_REDIS_ADDR"`
	}

	Monitor struct {
		SlowThreshold  time.Duration `env:"MONITOR_SLOW_THRESHOLD,default=1s"`
		SampleInterval time.Duration `env:"MONITOR_SAMPLE_INTERVAL,default=30s"`
		LagThreshold   time.Duration `env:"MONITOR_LAG_THRESHOLD,default=100ms"`
	}

	Database struct {
		// URL selects the Postgres store when set. Empty means the
		// in-memory store.
		URL string `env:"DATABASE_URL"`
	}
}

// Load reads an optional .env file and decodes the environment into a
// Config. Validation failures are fatal for the caller: the process must
// not start with an incomplete configuration.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine; the environment may be set directly.
		_ = godotenv.Load(envFile)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces startup invariants.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW must be positive")
	}
	if c.Monitor.SampleInterval <= 0 {
		return fmt.Errorf("config: MONITOR_SAMPLE_INTERVAL must be positive")
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
