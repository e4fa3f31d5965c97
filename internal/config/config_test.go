package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nbhd.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.SafetyTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BackoffInitial)
	assert.Equal(t, 10*time.Second, cfg.BackoffMax)
	assert.False(t, cfg.OTELEnabled)
	assert.Empty(t, cfg.OTELEndpoint)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("NBHD_DB", "/tmp/other.db")
	t.Setenv("NBHD_SAFETY_TIMEOUT", "250ms")
	t.Setenv("NBHD_MAX_RETRIES", "0")
	t.Setenv("NBHD_BACKOFF_INITIAL", "10ms")
	t.Setenv("NBHD_BACKOFF_MAX", "80ms")
	t.Setenv("NBHD_OTEL_ENABLED", "true")
	t.Setenv("NBHD_OTEL_ENDPOINT", "localhost:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.SafetyTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.BackoffInitial)
	assert.Equal(t, 80*time.Millisecond, cfg.BackoffMax)
	assert.True(t, cfg.OTELEnabled)
	assert.Equal(t, "localhost:4318", cfg.OTELEndpoint)
}

func TestLoad_DBPathOverride(t *testing.T) {
	t.Setenv("NBHD_DB", "/tmp/env.db")

	cfg, err := Load(WithDBPath("/tmp/flag.db"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.db", cfg.DBPath)

	cfg, err = Load(WithDBPath(""))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath, "an empty override keeps the environment value")
}

func TestLoad_OverrideIsValidated(t *testing.T) {
	t.Setenv("NBHD_MAX_RETRIES", "-1")

	_, err := Load(WithDBPath("x.db"))
	assert.ErrorContains(t, err, "NBHD_MAX_RETRIES must not be negative")
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("NBHD_SAFETY_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	valid := Config{
		DBPath:         "x.db",
		SafetyTimeout:  time.Second,
		MaxRetries:     1,
		BackoffInitial: time.Second,
		BackoffMax:     time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty db", func(c *Config) { c.DBPath = "" }, "NBHD_DB"},
		{"zero timeout", func(c *Config) { c.SafetyTimeout = 0 }, "NBHD_SAFETY_TIMEOUT"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "NBHD_MAX_RETRIES"},
		{"zero backoff", func(c *Config) { c.BackoffInitial = 0 }, "NBHD_BACKOFF_INITIAL"},
		{"max below initial", func(c *Config) { c.BackoffMax = time.Millisecond }, "NBHD_BACKOFF_MAX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
