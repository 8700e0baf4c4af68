package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server struct {
		Port    string   `yaml:"port"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"server"`
	PollInterval time.Duration `yaml:"-" env:"POLL_INTERVAL"`
	Peers        []string      `yaml:"peers"`
	Debug        bool          `yaml:"debug"`
	APIAddr      string        `yaml:"apiAddr" env:"CUSTOM_API_ADDR"`
}

func TestLoadConfigFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  timeout: 5s
debug: true
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9100") // env wins over file

	var cfg testConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout.Std())
	assert.True(t, cfg.Debug)
}

func TestLoadConfigDurationAndSliceFromEnv(t *testing.T) {
	t.Setenv("SERVER_TIMEOUT", "1m30s")
	t.Setenv("POLL_INTERVAL", "45s")
	t.Setenv("PEERS", "a.local, b.local,,c.local")

	var cfg testConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, 90*time.Second, cfg.Server.Timeout.Std())
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"a.local", "b.local", "c.local"}, cfg.Peers)
}

func TestLoadConfigExplicitEnvTag(t *testing.T) {
	t.Setenv("CUSTOM_API_ADDR", "10.0.0.1:8080")

	var cfg testConfig
	require.NoError(t, LoadConfig(&cfg))
	assert.Equal(t, "10.0.0.1:8080", cfg.APIAddr)
}

func TestLoadConfigRejectsBadTarget(t *testing.T) {
	assert.Error(t, LoadConfig(nil))
	var notAPointer testConfig
	assert.Error(t, LoadConfig(notAPointer))
}

func TestLoadConfigRejectsUnparsableValue(t *testing.T) {
	t.Setenv("SERVER_TIMEOUT", "not-a-duration")

	var cfg testConfig
	assert.Error(t, LoadConfig(&cfg))
}

func TestLoadConfigRejectsBadDurationInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  timeout: soon\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	var cfg testConfig
	assert.Error(t, LoadConfig(&cfg))
}
