package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultRabbitMQQueue, cfg.RabbitMQ.Queue)
	assert.Equal(t, time.Minute, cfg.RabbitMQ.MessageTTL)
	assert.Equal(t, int64(DefaultMaxInFlight), cfg.RabbitMQ.MaxInFlight)
	assert.Equal(t, DefaultQueueSize, cfg.Listener.QueueSize)
	assert.Zero(t, cfg.Listener.Limit)
	assert.Equal(t, DefaultTokenSync, cfg.Listener.TokenSync)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[listener]
limit = 3
workers = 2

[uploader]
base_url = "http://uploader.local"
timeout = "15s"

[forward]
bot_token = "file-token"
group_id = -1001
`), 0o600))

	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("LISTENERS_LIMIT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Listener.Limit)
	assert.Equal(t, 2, cfg.Listener.Workers)
	assert.Equal(t, "http://uploader.local", cfg.Uploader.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Uploader.Timeout)
	assert.Equal(t, "env-token", cfg.Forward.BotToken)
	assert.Equal(t, int64(-1001), cfg.Forward.GroupID)
	assert.Equal(t, DefaultUploaderPath, cfg.Uploader.Path)
}

func TestLoadRejectsNegativeLimit(t *testing.T) {
	t.Setenv("LISTENERS_LIMIT", "-1")
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[listener\nlimit ="), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
