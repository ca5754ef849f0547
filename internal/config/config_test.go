package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weathersync/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/weathersync")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("BEARER_TOKEN", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchMaxRetries)
	assert.Equal(t, 5, cfg.SyncWorkers)
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
	assert.Equal(t, time.Hour, cfg.FreshnessThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.SnapshotRetention)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 10.0, cfg.ConflictTempJump)
	assert.Equal(t, 25.0, cfg.ConflictPrecipJump)
	assert.Equal(t, 3, cfg.ConflictSeverityJump)
	assert.Equal(t, 3*time.Hour, cfg.ConflictPlausibleGap)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("BEARER_TOKEN", "secret")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_WORKERS", "12")
	t.Setenv("SYNC_INTERVAL", "5m")
	t.Setenv("RATE_LIMIT", "3")
	t.Setenv("CONFLICT_TEMP_JUMP", "4.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 12, cfg.SyncWorkers)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 3, cfg.RateLimit)
	assert.Equal(t, 4.5, cfg.ConflictTempJump)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_INTERVAL", "not-a-duration")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_INTERVAL")
}

func TestLoad_InvalidInt(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_WORKERS", "many")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_WORKERS")
}
