package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("POLL_MAX_WAIT", "")
	t.Setenv("POLL_MAX_CONSECUTIVE_ERRORS", "")
	t.Setenv("SESSION_TTL", "")

	cfg := Load()

	assert.Equal(t, "8084", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Polling.MaxWait)
	assert.Equal(t, 5, cfg.Polling.MaxConsecutiveErrors)
	assert.Equal(t, time.Second, cfg.Polling.MockDelay)
	assert.Equal(t, "/login", cfg.LoginURL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BACKEND_URL", "https://shop.example.com/api")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_MAX_WAIT", "3m")
	t.Setenv("POLL_MAX_CONSECUTIVE_ERRORS", "2")
	t.Setenv("SESSION_TTL", "10m")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "https://shop.example.com/api", cfg.BackendURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Polling.Interval)
	assert.Equal(t, 3*time.Minute, cfg.Polling.MaxWait)
	assert.Equal(t, 2, cfg.Polling.MaxConsecutiveErrors)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("POLL_MAX_WAIT", "-1s")
	t.Setenv("POLL_MAX_CONSECUTIVE_ERRORS", "zero")

	cfg := Load()

	assert.Equal(t, DefaultPolling().Interval, cfg.Polling.Interval)
	assert.Equal(t, DefaultPolling().MaxWait, cfg.Polling.MaxWait)
	assert.Equal(t, DefaultPolling().MaxConsecutiveErrors, cfg.Polling.MaxConsecutiveErrors)
}
