package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsharma/apibench/internal/errors"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USER", "ada")

	v := viper.New()
	require.NoError(t, SetDefaults(v))

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, int64(DefaultMaxResponseBytes), cfg.HTTP.MaxResponseBytes)
	assert.True(t, cfg.HTTP.BlockMetadataEndpoints)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultAutosaveDelay, cfg.Autosave.Delay)
	assert.Equal(t, "ada", cfg.User.Name)
	assert.Equal(t, "apibench.db", filepath.Base(cfg.Database.Path))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "apibench.toml")
	content := `
[database]
path = "/tmp/bench.db"

[http]
timeout = "5s"
block_metadata_endpoints = false

[log]
level = "debug"
json = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/bench.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.False(t, cfg.HTTP.BlockMetadataEndpoints)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("APIBENCH_SERVER_ADDR", "0.0.0.0:9000")

	path := filepath.Join(dir, "apibench.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \"127.0.0.1:1\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Database: DatabaseConfig{Path: "x.db"},
		HTTP:     HTTPConfig{Timeout: time.Second, MaxResponseBytes: 1},
		User:     UserConfig{Name: "ada"},
	}
	require.NoError(t, valid.Validate())

	noDB := valid
	noDB.Database.Path = " "
	err := noDB.Validate()
	assert.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))

	negative := valid
	negative.HTTP.Timeout = -time.Second
	assert.Error(t, negative.Validate())

	noCap := valid
	noCap.HTTP.MaxResponseBytes = 0
	assert.Error(t, noCap.Validate())

	anonymous := valid
	anonymous.User.Name = ""
	assert.Error(t, anonymous.Validate())
}
