package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/studygroups")
	t.Setenv("ENV", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("MEETING_BASE_URL", "")
	t.Setenv("POOL_TTL", "")
	t.Setenv("POOL_SWEEP_INTERVAL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://zoom.us", cfg.MeetingBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.PoolTTL)
	assert.Zero(t, cfg.PoolSweepInterval)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://db/studygroups")
	t.Setenv("ENV", "production")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("POOL_TTL", "2m")
	t.Setenv("POOL_SWEEP_INTERVAL", "30s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Minute, cfg.PoolTTL)
	assert.Equal(t, 30*time.Second, cfg.PoolSweepInterval)
	assert.Equal(t, "postgres://db/studygroups", cfg.GetDBDSN())
}

func TestFromEnvErrors(t *testing.T) {
	t.Run("missing dsn", func(t *testing.T) {
		t.Setenv("DB_DSN", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DB_DSN")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("DB_DSN", "postgres://localhost/x")
		t.Setenv("POOL_TTL", "soon")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "POOL_TTL")
	})

	t.Run("non positive ttl", func(t *testing.T) {
		t.Setenv("DB_DSN", "postgres://localhost/x")
		t.Setenv("POOL_TTL", "0s")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "must be positive")
	})
}
