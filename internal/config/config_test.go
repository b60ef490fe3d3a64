package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, RealtimeMemory, cfg.RealtimeBackend)
	assert.Equal(t, 10*time.Second, cfg.HistoryTimeout)
	assert.Equal(t, "chat_events", cfg.AMQPExchange)
	assert.False(t, cfg.UseMemoryStore())
	assert.False(t, cfg.DebugRoutes)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DSN", "memory")
	t.Setenv("REALTIME_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SUBSCRIBE_TIMEOUT", "250ms")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, RealtimeRedis, cfg.RealtimeBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.SubscribeTimeout)
	assert.True(t, cfg.DebugRoutes)
}

func TestValidateRejectsRedisWithoutAddress(t *testing.T) {
	cfg := Config{RealtimeBackend: RealtimeRedis, HistoryTimeout: time.Second, SubscribeTimeout: time.Second}
	assert.Error(t, cfg.Validate())

	cfg.RealtimeBackend = "kafka"
	assert.Error(t, cfg.Validate())
}
