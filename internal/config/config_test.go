package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.RemoteLight(), "no redis configured means in-process backend")
	assert.Equal(t, "file:quail.db", cfg.Database.DSN)
	assert.Equal(t, Duration(24*time.Hour), cfg.Session.TTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_RedisSelectsRemoteBackend(t *testing.T) {
	path := writeConfig(t, `
redis:
  url: redis://localhost:6379/0
  options:
    key_prefix: "bot:session:"
database:
  dsn: file:bot.db
session:
  ttl: 1h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.RemoteLight())
	assert.Equal(t, Duration(time.Hour), cfg.Session.TTL)

	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "bot:session:", opts.KeyPrefix)
	assert.Equal(t, "quail:", opts.LockPrefix, "unset options keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUAIL_REDIS_URL", "redis://env-host:6379")
	t.Setenv("QUAIL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.RemoteLight())
	assert.Equal(t, "redis://env-host:6379", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
}

func TestValidate_EncryptionKey(t *testing.T) {
	cfg := Default()
	cfg.Session.EncryptionKey = "not-hex"
	assert.Error(t, cfg.Validate())

	cfg.Session.EncryptionKey = "abcd"
	assert.Error(t, cfg.Validate(), "short key must be rejected")

	cfg.Session.EncryptionKey = "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f"
	require.NoError(t, cfg.Validate())

	key, err := cfg.SessionEncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestValidate_EmptyRedisURL(t *testing.T) {
	path := writeConfig(t, `
redis:
  url: ""
`)
	_, err := Load(path)
	assert.Error(t, err)
}
