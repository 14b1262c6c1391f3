package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/farm-assistant/internal/assistant"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RUN_POLL_INTERVAL", "")
	t.Setenv("RUN_MAX_ATTEMPTS", "")
	t.Setenv("RUN_CANCELLED_AS", "")
	t.Setenv("PEST_REFRESH_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Second, cfg.Poller.Interval)
	assert.Equal(t, 120, cfg.Poller.MaxAttempts)
	assert.Equal(t, assistant.CancelledAsFailed, cfg.Poller.CancelledAs)
	assert.Equal(t, 6*time.Hour, cfg.PestRefreshInterval)
	assert.Equal(t, 168*time.Hour, cfg.RedisTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RUN_POLL_INTERVAL", "250ms")
	t.Setenv("RUN_MAX_ATTEMPTS", "0")
	t.Setenv("RUN_CANCELLED_AS", "conflict")
	t.Setenv("MEMBERS_BASE_URL", "http://farmmate.net/api")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Poller.Interval)
	assert.Equal(t, 0, cfg.Poller.MaxAttempts)
	assert.Equal(t, assistant.CancelledAsConflict, cfg.Poller.CancelledAs)
	assert.Equal(t, "http://farmmate.net/api", cfg.MembersBaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"RUN_POLL_INTERVAL": "soon",
		"RUN_CANCELLED_AS":  "ignore",
		"RUN_MAX_ATTEMPTS":  "-1",
		"STORE_MAX_AGE":     "a week",
		"HTTP_TIMEOUT":      "10",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
