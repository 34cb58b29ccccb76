package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.RoomIdleTimeout)
	assert.Equal(t, 45*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	body := `{"port": 9000, "log_level": "debug", "heartbeat_interval": "10s", "heartbeat_timeout": "20s"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.json"), []byte(body), 0o600))

	t.Setenv("SPY_LOG_LEVEL", "warn")

	cfg, err := load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "7070")

	cfg, err := load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoad_RejectsHeartbeatMisconfig(t *testing.T) {
	t.Setenv("SPY_HEARTBEAT_TIMEOUT", "1s")

	_, err := load(t.TempDir())
	assert.Error(t, err)
}
