// Package config loads nbhd runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by every nbhd command. CLI flags override
// the environment.
type Config struct {
	DBPath string `env:"NBHD_DB" envDefault:"nbhd.db"`

	SafetyTimeout  time.Duration `env:"NBHD_SAFETY_TIMEOUT"  envDefault:"10s"`
	MaxRetries     int           `env:"NBHD_MAX_RETRIES"     envDefault:"3"`
	BackoffInitial time.Duration `env:"NBHD_BACKOFF_INITIAL" envDefault:"1s"`
	BackoffMax     time.Duration `env:"NBHD_BACKOFF_MAX"     envDefault:"10s"`

	OTELEndpoint string `env:"NBHD_OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"NBHD_OTEL_ENABLED" envDefault:"false"`
}

// ParseEnv fills target from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Option adjusts a Config after the environment is parsed.
type Option func(*Config)

// WithDBPath overrides NBHD_DB. An empty path keeps the environment value.
func WithDBPath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.DBPath = path
		}
	}
}

// Load parses the environment, applies opts, and validates the result.
func Load(opts ...Option) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("NBHD_DB must not be empty"))
	}
	if c.SafetyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("NBHD_SAFETY_TIMEOUT must be positive, got %s", c.SafetyTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("NBHD_MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.BackoffInitial <= 0 {
		errs = append(errs, fmt.Errorf("NBHD_BACKOFF_INITIAL must be positive, got %s", c.BackoffInitial))
	}
	if c.BackoffMax < c.BackoffInitial {
		errs = append(errs, fmt.Errorf("NBHD_BACKOFF_MAX (%s) must not be below NBHD_BACKOFF_INITIAL (%s)", c.BackoffMax, c.BackoffInitial))
	}
	return errors.Join(errs...)
}
