package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "kanban-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.True(t, cfg.Board.AdvisoryLocks)
	assert.Equal(t, 50, cfg.Board.HistoryPageSize)
	assert.Equal(t, 100, cfg.Board.HistoryMaxPageSize)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Empty(t, cfg.Notification.WebhookURL)
	assert.Equal(t, 5*time.Second, cfg.Notification.WebhookTimeout())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("BOARD_ADVISORY_LOCKS", "false")
	t.Setenv("BOARD_HISTORY_PAGE_SIZE", "20")
	t.Setenv("BOARD_HISTORY_MAX_PAGE_SIZE", "40")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("NOTIFY_WEBHOOK_URL", "http://hooks.local/board")
	t.Setenv("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.False(t, cfg.Board.AdvisoryLocks)
	assert.Equal(t, 20, cfg.Board.HistoryPageSize)
	assert.Equal(t, 40, cfg.Board.HistoryMaxPageSize)
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, "http://hooks.local/board", cfg.Notification.WebhookURL)
	assert.Equal(t, 2*time.Second, cfg.Notification.WebhookTimeout())
}

func TestLoadRejectsBadPageSizes(t *testing.T) {
	t.Run("non-positive default", func(t *testing.T) {
		t.Setenv("BOARD_HISTORY_PAGE_SIZE", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "BOARD_HISTORY_PAGE_SIZE")
	})
	t.Run("max below default", func(t *testing.T) {
		t.Setenv("BOARD_HISTORY_MAX_PAGE_SIZE", "10")
		_, err := Load()
		assert.ErrorContains(t, err, "BOARD_HISTORY_MAX_PAGE_SIZE")
	})
}
