package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CLIENT_URL", "http://forum.local")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.CommentMaxDepth)
	assert.Equal(t, 3, cfg.FlagThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, []string{"http://forum.local"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("COMMENT_MAX_DEPTH", "12")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("JWT_EXPIRES_IN", "2h")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 12, cfg.CommentMaxDepth)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresUser:     "forum",
		PostgresPassword: "pw",
		PostgresDB:       "forumhub",
		PostgresSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=forum password=pw dbname=forumhub sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}
