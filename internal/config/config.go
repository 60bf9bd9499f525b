package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the stream subscriber (envmon watch)
type Config struct {
	Stream  StreamClientConfig `yaml:"stream"`
	Logging LoggingConfig      `yaml:"logging"`
}

// StreamClientConfig contains connection settings for the remote server
type StreamClientConfig struct {
	URL                  string        `yaml:"url"`
	AuthToken            string        `yaml:"auth_token"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
}

// LoadConfig loads subscriber configuration from a YAML file. A missing file
// is not an error: defaults and environment variables are enough to connect.
func LoadConfig(path string) (*Config, error) {
	var config Config

	yamlData, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(yamlData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.ApplyDefaults()
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	config.OverrideFromEnv()
	return &config, nil
}

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Stream.URL == "" {
		c.Stream.URL = "ws://localhost:8000/api/stream"
	}
	if c.Stream.ReconnectInterval == 0 {
		c.Stream.ReconnectInterval = 1 * time.Second
	}
	if c.Stream.MaxReconnectInterval == 0 {
		c.Stream.MaxReconnectInterval = 5 * time.Minute
	}
	if c.Stream.PongTimeout == 0 {
		c.Stream.PongTimeout = 90 * time.Second
	}
	// Watching is interactive, so default to human-readable output
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.applyDefaults()
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() {
	if v := os.Getenv("ENVMON_URL"); v != "" {
		c.Stream.URL = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Stream.AuthToken = v
	}
	if v := os.Getenv("ENVMON_TOKEN"); v != "" {
		c.Stream.AuthToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("stream URL is required")
	}
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("stream URL must start with ws:// or wss://")
	}
	if c.Stream.AuthToken == "" {
		return fmt.Errorf("stream auth token is required")
	}
	if c.Stream.ReconnectInterval < 100*time.Millisecond {
		return fmt.Errorf("reconnect interval must be at least 100ms")
	}
	if c.Stream.MaxReconnectInterval < c.Stream.ReconnectInterval {
		return fmt.Errorf("max reconnect interval must not be below reconnect interval")
	}
	return c.Logging.Validate()
}

// String returns a safe string representation (hides auth token)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Stream: [URL=%s, Token=%s], Logging: %+v}",
		c.Stream.URL,
		maskToken(c.Stream.AuthToken),
		c.Logging,
	)
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
