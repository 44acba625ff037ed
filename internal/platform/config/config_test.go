package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Dispatch.ScanInterval)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.VisibilityTimeout)
	assert.Equal(t, QueueMemory, cfg.Dispatch.QueueBackend)
	assert.Equal(t, NotifierLog, cfg.Dispatch.NotifierBackend)
	assert.False(t, cfg.Users.RequireApproval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
dispatch:
  scan_interval: 30s
  queue_backend: redis
redis:
  url: redis://localhost:6379/0
users:
  require_approval: true
`), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISPATCH_SCAN_INTERVAL", "15s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Dispatch.ScanInterval, "env wins over yaml")
	assert.Equal(t, QueueRedis, cfg.Dispatch.QueueBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.True(t, cfg.Users.RequireApproval)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Auth: AuthConfig{JWTSigningKey: "k"},
			Dispatch: DispatchConfig{
				ScanInterval:      time.Minute,
				VisibilityTimeout: time.Minute,
				ScanPageSize:      10,
				InvitationBatch:   10,
				WorkersPerFamily:  1,
				QueueBackend:      QueueMemory,
				NotifierBackend:   NotifierLog,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing signing key", func(c *Config) { c.Auth.JWTSigningKey = "" }, "jwt_signing_key"},
		{"zero scan interval", func(c *Config) { c.Dispatch.ScanInterval = 0 }, "scan_interval"},
		{"zero page size", func(c *Config) { c.Dispatch.ScanPageSize = 0 }, "scan_page_size"},
		{"unknown queue backend", func(c *Config) { c.Dispatch.QueueBackend = "sqs" }, "queue_backend"},
		{"unknown notifier backend", func(c *Config) { c.Dispatch.NotifierBackend = "smtp" }, "notifier_backend"},
		{"redis queue without url", func(c *Config) { c.Dispatch.QueueBackend = QueueRedis }, "redis.url"},
		{"kafka notifier without brokers", func(c *Config) { c.Dispatch.NotifierBackend = NotifierKafka }, "kafka.brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
