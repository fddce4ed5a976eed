package arena

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	assert.Equal(t, err, nil)
	assert.Equal(t, config.Host, "127.0.0.1")
	assert.Equal(t, config.Port, 8080)
	assert.Equal(t, config.Timeout, 10*time.Second)
	assert.Equal(t, config.WsUrl(), "ws://127.0.0.1:8080/api/v1")
}

func TestLoadConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "arena.yaml")
	err := os.WriteFile(configPath, []byte("host: beamer.local\nport: 8081\ntimeout: 3s\n"), 0644)
	assert.Equal(t, err, nil)

	config, err := LoadConfig(configPath)
	assert.Equal(t, err, nil)
	assert.Equal(t, config.Host, "beamer.local")
	assert.Equal(t, config.Port, 8081)
	assert.Equal(t, config.Timeout, 3*time.Second)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ARENA_HOST", "10.0.0.5")
	t.Setenv("ARENA_PORT", "9090")
	t.Setenv("ARENA_TIMEOUT", "2s")

	config, err := LoadConfig("")
	assert.Equal(t, err, nil)
	assert.Equal(t, config.Host, "10.0.0.5")
	assert.Equal(t, config.Port, 9090)
	assert.Equal(t, config.Timeout, 2*time.Second)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("ARENA_PORT", "-1")
	_, err := LoadConfig("")
	assert.NotEqual(t, err, nil)

	t.Setenv("ARENA_PORT", "not a port")
	_, err = LoadConfig("")
	assert.NotEqual(t, err, nil)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, config.Validate(), nil)

	config.Host = ""
	assert.NotEqual(t, config.Validate(), nil)

	config = DefaultConfig()
	config.Timeout = 0
	assert.NotEqual(t, config.Validate(), nil)
}
