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

	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, ScoreSourceStored, cfg.Leaderboard.ScoreSource)
	assert.Equal(t, TriggerModeSync, cfg.Leaderboard.TriggerMode)
	assert.Equal(t, 50, cfg.Leaderboard.BroadcastTopN)
	assert.Equal(t, 30*time.Second, cfg.Leaderboard.RefreshInterval)
	assert.Equal(t, 15*time.Second, cfg.Worker.HeartbeatInterval)
	assert.Equal(t, StoreDriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LEADERBOARD_SCORE_SOURCE", "submissions")
	t.Setenv("LEADERBOARD_TRIGGER_MODE", "queue")
	t.Setenv("LEADERBOARD_BROADCAST_TOP_N", "10")
	t.Setenv("LEADERBOARD_REFRESH_INTERVAL_SECONDS", "5")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.HTTPPort)
	assert.Equal(t, ScoreSourceSubmissions, cfg.Leaderboard.ScoreSource)
	assert.Equal(t, TriggerModeQueue, cfg.Leaderboard.TriggerMode)
	assert.Equal(t, 10, cfg.Leaderboard.BroadcastTopN)
	assert.Equal(t, 5*time.Second, cfg.Leaderboard.RefreshInterval)
	assert.Equal(t, 0, cfg.Redis.DB, "unparseable ints fall back to the default")
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	t.Setenv("LEADERBOARD_TRIGGER_MODE", "carrier-pigeon")

	_, err := Load()
	assert.ErrorContains(t, err, "LEADERBOARD_TRIGGER_MODE")
}

func TestValidatePageSizes(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Leaderboard.DefaultPageSize = 500
	assert.Error(t, cfg.Validate())
}

func TestQueueModeNeedsRedis(t *testing.T) {
	t.Setenv("LEADERBOARD_TRIGGER_MODE", "queue")
	t.Setenv("REDIS_ENABLED", "false")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_ENABLED")
}

func TestMemoryDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ENABLED", "no")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled, "unparseable bools fall back to the default")

	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}
