package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "FRONTEND_URL", "ALLOWED_ORIGINS", "DATABASE_URL", "REDIS_ENABLED",
		"ACTION_RATE_PER_SECOND", "ACTION_BURST", "ROOM_IDLE_TIMEOUT_MINUTES", "TICKET_TTL_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 30.0, cfg.ActionRatePerSecond)
	assert.Equal(t, 60, cfg.ActionBurst)
	assert.Equal(t, time.Hour, cfg.RoomIdleTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TicketTTL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("FRONTEND_URL", "https://blocks.example.com")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com ,,https://b.example.com")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("ROOM_IDLE_TIMEOUT_MINUTES", "5")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{
		"https://blocks.example.com",
		"http://localhost:5173",
		"https://a.example.com",
		"https://b.example.com",
	}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.DatabaseURL, "default_query_exec_mode=simple_protocol")
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, 5*time.Minute, cfg.RoomIdleTimeout)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACTION_BURST", "lots")
	t.Setenv("ACTION_RATE_PER_SECOND", "-3")
	t.Setenv("REDIS_ENABLED", "maybe")

	assert.Equal(t, 60, GetEnvAsInt("ACTION_BURST", 60))
	assert.Equal(t, 30.0, GetEnvAsFloat("ACTION_RATE_PER_SECOND", 30))
	assert.True(t, GetEnvAsBool("REDIS_ENABLED", true))
}
