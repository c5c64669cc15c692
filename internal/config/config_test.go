package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 2*time.Hour, cfg.IdleTimeout)
	assert.Equal(t, "memory", cfg.ArchiveMode)
	assert.Equal(t, 64, cfg.ArchiveBuffer)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"PICKBAN_ADDR=:9000\nPICKBAN_LOG_LEVEL=debug\nPICKBAN_ALLOWED_ORIGINS=localhost:*,example.com\n",
	), 0o600))

	t.Setenv("PICKBAN_LOG_LEVEL", "warn")
	t.Setenv("PICKBAN_IDLE_TIMEOUT", "15m")
	// Make sure values loaded from the file do not leak into other tests.
	t.Setenv("PICKBAN_ADDR", "")
	os.Unsetenv("PICKBAN_ADDR")
	t.Setenv("PICKBAN_ALLOWED_ORIGINS", "")
	os.Unsetenv("PICKBAN_ALLOWED_ORIGINS")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Config{
		Addr:            "",
		LogLevel:        "loud",
		LogFormat:       "json",
		PingInterval:    time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
		ArchiveMode:     "postgres",
		ArchiveBuffer:   1,
	}

	err := cfg.Validate()
	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 3)
	assert.ErrorContains(t, err, "PICKBAN_DATABASE_URL")
}

func TestLoad_RejectsBadArchiveMode(t *testing.T) {
	t.Setenv("PICKBAN_ARCHIVE_MODE", "redis")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "PICKBAN_ARCHIVE_MODE")
}
