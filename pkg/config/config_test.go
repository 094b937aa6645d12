package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "heapcache.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	assert.Equal(t, NewCfg().PoolSize, cfg.PoolSize)
	assert.Equal(t, "127.0.0.1:8888", cfg.Addr())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
bind_address = 0.0.0.0
port = 9999

[storage]
data_file = /tmp/pages.db
pool_size = 16

[log]
level = debug
path = /tmp/heapcache.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr())
	assert.Equal(t, "/tmp/pages.db", cfg.DataFile)
	assert.Equal(t, 16, cfg.PoolSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/heapcache.log", cfg.LogPath)
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	path := writeConfig(t, "[storage]\npool_size = 8\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, NewCfg().DataFile, cfg.DataFile)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRejectsInvalidPoolSize(t *testing.T) {
	path := writeConfig(t, "[storage]\npool_size = 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_size")
	// created with a stack trace
	assert.Contains(t, fmt.Sprintf("%+v", err), "config.(*Cfg).validate")
}
