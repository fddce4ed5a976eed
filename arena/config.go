package arena

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultHost = "127.0.0.1"
const DefaultPort = 8080
const DefaultTimeout = 10 * time.Second

type SessionSettings struct {
	WsHandshakeTimeout time.Duration
	// how long Connect waits for the initial composition snapshot
	SnapshotTimeout time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
}

func DefaultSessionSettings() *SessionSettings {
	return &SessionSettings{
		WsHandshakeTimeout: 2 * time.Second,
		SnapshotTimeout:    DefaultTimeout,
		WriteTimeout:       5 * time.Second,
		PingInterval:       15 * time.Second,
	}
}

type ClientSettings struct {
	ConnectTimeout time.Duration
	// default deadline for SendAndWait echo confirmation
	AckTimeout time.Duration
	// max concurrent clip loads during deck bootstrap
	BootstrapWindowSize int
	GridWidth           int

	SessionSettings *SessionSettings
}

func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		ConnectTimeout:      DefaultTimeout,
		AckTimeout:          DefaultTimeout,
		BootstrapWindowSize: 5,
		GridWidth:           10,
		SessionSettings:     DefaultSessionSettings(),
	}
}

// Config is the externally sourced connection surface: a YAML file and/or
// ARENA_HOST, ARENA_PORT, ARENA_TIMEOUT environment overrides. The core
// itself only ever sees explicit settings.
type Config struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	DryRun  bool          `yaml:"dry_run"`
}

func DefaultConfig() *Config {
	return &Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// LoadConfig reads configPath if non-empty, then applies environment
// overrides, then validates. A missing file with an empty path is not an
// error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		configBytes, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(configBytes, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	if host := os.Getenv("ARENA_HOST"); host != "" {
		config.Host = host
	}
	if portStr := os.Getenv("ARENA_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("ARENA_PORT: %w", err)
		}
		config.Port = port
	}
	if timeoutStr := os.Getenv("ARENA_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("ARENA_TIMEOUT: %w", err)
		}
		config.Timeout = timeout
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (self *Config) Validate() error {
	if self.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if self.Port <= 0 {
		return fmt.Errorf("port must be positive: %d", self.Port)
	}
	if self.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %s", self.Timeout)
	}
	return nil
}

// WsUrl is the remote websocket endpoint for this config.
func (self *Config) WsUrl() string {
	return WsUrl(self.Host, self.Port)
}

func WsUrl(host string, port int) string {
	return fmt.Sprintf("ws://%s:%d/api/v1", host, port)
}

func RestUrl(host string, port int) string {
	return fmt.Sprintf("http://%s:%d/api/v1", host, port)
}
