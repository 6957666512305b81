package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServer(), *cfg)
	assert.Equal(t, 60*time.Second, cfg.ConflictWindow)
}

func TestLoadServer_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
dsn: "postgres://opsync@localhost/opsync?sslmode=disable"
conflict_window: 30s
jwt_secret: "s3cret"
rate_limit: 120
`)

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "postgres://opsync@localhost/opsync?sslmode=disable", cfg.DSN)
	assert.Equal(t, 30*time.Second, cfg.ConflictWindow)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 120, cfg.RateLimit)
	// Не указано в файле - остается по умолчанию
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
}

func TestLoadClient_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server: "https://sync.example.com"
batch_size: 10
device_id: till-3
strategy: vector_clock
sync_interval: 1m
retry_base: 0s
`)

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.Server)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, "vector_clock", cfg.Strategy)
	assert.Equal(t, "till-3", cfg.DeviceID)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, time.Duration(0), cfg.RetryBase)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.BatchTimeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadServer(writeConfig(t, "listen: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		server  bool
	}{
		{name: "zero batch size", content: "batch_size: 0"},
		{name: "negative retries", content: "max_retries: -1"},
		{name: "empty server", content: `server: ""`},
		{name: "negative probe", content: "probe_interval: -1s"},
		{name: "zero window", content: "conflict_window: 0s", server: true},
		{name: "negative rate limit", content: "rate_limit: -5", server: true},
		{name: "empty dsn", content: `dsn: ""`, server: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			var err error
			if tt.server {
				_, err = LoadServer(path)
			} else {
				_, err = LoadClient(path)
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		level, err := ParseLogLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, level)
	}

	_, err := ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultClient()
	cfg.LogLevel = "verbose"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
