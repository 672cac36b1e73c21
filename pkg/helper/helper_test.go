package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("ADMIN_EMAILS", "Owner@Example.com, chef@example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Minute, cfg.ClientIdleTimeout)
	assert.Empty(t, cfg.Neo4jURI)

	assert.True(t, cfg.IsAdminEmail("owner@example.com"))
	assert.True(t, cfg.IsAdminEmail(" chef@example.com"))
	assert.False(t, cfg.IsAdminEmail("guest@example.com"))
}

func TestLoadConfig_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("STORAGE_BACKEND", "s3")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "STORAGE_BACKEND")
}

func TestRateLimiter_PerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	rl.Cleanup(1)
	assert.True(t, rl.Allow("a"))
}
