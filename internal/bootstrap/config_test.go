package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.ServerPort)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "hill:", cfg.KeyPrefix)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 24*time.Hour, cfg.StaleRoomAfter)
	assert.Equal(t, 10, cfg.JoinAttemptLimit)
	assert.Equal(t, 10*time.Second, cfg.JoinAttemptWindow)
	assert.Equal(t, "*", cfg.CORSAllowedOrigin)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STORE_DRIVER", "MySQL")
	t.Setenv("DB_USER", "hill")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JOIN_ATTEMPT_WINDOW", "1m")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, StoreMySQL, cfg.StoreDriver)
	assert.Equal(t, "hill", cfg.DBUser)
	assert.Equal(t, time.Minute, cfg.JoinAttemptWindow)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	_, err := LoadConfig()
	assert.Error(t, err, "mysql without credentials")

	t.Setenv("STORE_DRIVER", "postgres")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: \"4000\"\nstale_room_after: 2h\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.ServerPort)
	assert.Equal(t, 2*time.Hour, cfg.StaleRoomAfter)
}
