package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"WORKER_MAX_RETRIES", "WORKER_RETRY_BACKOFF_BASE", "FORCE_SERVICE_FAILURES",
		"ENABLE_RANDOM_FAILURES", "WEBHOOK_RATE_LIMIT_COUNT", "WEBHOOK_RATE_LIMIT_PERIOD",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Worker.MaxRetries)
	assert.Equal(t, 2, cfg.Worker.BackoffBase)
	assert.Equal(t, 0, cfg.Faults.ForceServiceFailures)
	assert.False(t, cfg.Faults.EnableRandomFailures)
	assert.Equal(t, 10, cfg.RateLimit.Count)
	assert.Equal(t, time.Minute, cfg.RateLimit.Period)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_MAX_RETRIES", "5")
	t.Setenv("WORKER_RETRY_BACKOFF_BASE", "3")
	t.Setenv("FORCE_SERVICE_FAILURES", "2")
	t.Setenv("ENABLE_RANDOM_FAILURES", "true")
	t.Setenv("WEBHOOK_RATE_LIMIT_COUNT", "100")
	t.Setenv("WEBHOOK_RATE_LIMIT_PERIOD", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, 3, cfg.Worker.BackoffBase)
	assert.Equal(t, 2, cfg.Faults.ForceServiceFailures)
	assert.True(t, cfg.Faults.EnableRandomFailures)
	assert.Equal(t, 100, cfg.RateLimit.Count)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Period)
}

func TestLoadRejectsBadBackoffBase(t *testing.T) {
	t.Setenv("WORKER_RETRY_BACKOFF_BASE", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	cases := map[string]time.Duration{
		"second": time.Second,
		"minute": time.Minute,
		"Hour":   time.Hour,
		"day":    24 * time.Hour,
		"90s":    90 * time.Second,
	}
	for in, want := range cases {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePeriod("fortnight")
	assert.Error(t, err)
	_, err = ParsePeriod("-1s")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())
	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}
