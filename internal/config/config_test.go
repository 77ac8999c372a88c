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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://theoldreader.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
	assert.Equal(t, 100, cfg.Sync.IDLimit)
	assert.True(t, cfg.Sync.UnreadOnly())
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.NotEmpty(t, cfg.Storage.DSN)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("READER_TEST_DSN", "postgres://u:p@db:5432/reader?sslmode=disable")

	path := writeConfig(t, `
log_level: debug
api:
  base_url: http://localhost:9999
  timeout: 5s
sync:
  batch_size: 10
  only_unread: false
storage:
  driver: postgres
  dsn: ${READER_TEST_DSN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:9999", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.False(t, cfg.Sync.UnreadOnly())
	assert.Equal(t, "postgres://u:p@db:5432/reader?sslmode=disable", cfg.Storage.DSN)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: mongo\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: postgres\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "api: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RejectsNegativeDurations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "refresh interval", body: "sync:\n  refresh_interval: -1m\n", want: "sync.refresh_interval"},
		{name: "api timeout", body: "api:\n  timeout: -5s\n", want: "api.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
