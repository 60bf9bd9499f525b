package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds server configuration
type AppConfig struct {
	Server   ServerSettings   `yaml:"server"`
	Database DatabaseSettings `yaml:"database"`
	Auth     AuthSettings     `yaml:"auth"`
	Stream   StreamSettings   `yaml:"stream"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// ServerSettings contains HTTP server configuration
type ServerSettings struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseSettings selects the store implementation and its file
type DatabaseSettings struct {
	Driver string `yaml:"driver"` // "sqlite" or "gorm"
	Path   string `yaml:"path"`
}

// AuthSettings lists accepted bearer tokens
type AuthSettings struct {
	Tokens     []TokenEntry `yaml:"tokens"`
	TokensFile string       `yaml:"tokens_file"`
}

// TokenEntry maps a token to a principal name
type TokenEntry struct {
	Token     string `yaml:"token"`
	Principal string `yaml:"principal"`
}

// StreamSettings configures the live event stream
type StreamSettings struct {
	// Backlog is how many recent events are replayed to new subscribers.
	// Unset means DefaultBacklog; an explicit 0 disables replay.
	Backlog *int `yaml:"backlog"`
}

// DefaultBacklog is the replay size used when stream.backlog is not set
const DefaultBacklog = 100

// BacklogSize returns the configured backlog, or DefaultBacklog when unset
func (s StreamSettings) BacklogSize() int {
	if s.Backlog == nil {
		return DefaultBacklog
	}
	return *s.Backlog
}

// Addr returns host:port for the listener
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadAppConfig loads server configuration from a YAML file, then applies
// defaults, .env and environment overrides, and validates the result.
func LoadAppConfig(path string) (*AppConfig, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config AppConfig
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := config.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// LoadDotEnv loads variables from the given files (".env" when none) into
// the process environment. Missing files are ignored and variables already
// set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyDefaults sets default values for server config
func (ac *AppConfig) ApplyDefaults() {
	if ac.Server.Port == 0 {
		ac.Server.Port = 8000
	}
	if ac.Server.Host == "" {
		ac.Server.Host = "localhost"
	}
	if ac.Server.ReadTimeout == 0 {
		ac.Server.ReadTimeout = 60 * time.Second
	}
	if ac.Server.WriteTimeout == 0 {
		ac.Server.WriteTimeout = 10 * time.Second
	}
	if ac.Server.ShutdownTimeout == 0 {
		ac.Server.ShutdownTimeout = 10 * time.Second
	}
	if ac.Database.Driver == "" {
		ac.Database.Driver = "sqlite"
	}
	if ac.Database.Path == "" {
		ac.Database.Path = "./data/env-monitor.db"
	}
	if ac.Stream.Backlog == nil {
		backlog := DefaultBacklog
		ac.Stream.Backlog = &backlog
	}
	ac.Logging.applyDefaults()
}

// OverrideFromEnv overrides config from environment variables
func (ac *AppConfig) OverrideFromEnv() error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		ac.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		ac.Server.Host = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		ac.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		ac.Database.Path = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		ac.Auth.Tokens = append(ac.Auth.Tokens, TokenEntry{Token: v, Principal: "env"})
	}
	if v := os.Getenv("AUTH_TOKENS_FILE"); v != "" {
		ac.Auth.TokensFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		ac.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		ac.Logging.Format = v
	}
	return nil
}

// Validate checks if server configuration is valid
func (ac *AppConfig) Validate() error {
	if ac.Server.Port < 1 || ac.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	switch ac.Database.Driver {
	case "sqlite", "gorm":
	default:
		return fmt.Errorf("database driver must be \"sqlite\" or \"gorm\", got %q", ac.Database.Driver)
	}
	if ac.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if len(ac.Auth.Tokens) == 0 && ac.Auth.TokensFile == "" {
		return fmt.Errorf("at least one auth token or a tokens file is required")
	}
	for i, t := range ac.Auth.Tokens {
		if t.Token == "" {
			return fmt.Errorf("auth token %d is empty", i)
		}
	}
	if n := ac.Stream.BacklogSize(); n < 0 || n > 10000 {
		return fmt.Errorf("stream backlog must be between 0 and 10000")
	}
	return ac.Logging.Validate()
}

// String returns a safe string representation (hides auth tokens)
func (ac *AppConfig) String() string {
	masked := make([]string, len(ac.Auth.Tokens))
	for i, t := range ac.Auth.Tokens {
		masked[i] = t.Principal + "=" + maskToken(t.Token)
	}
	return fmt.Sprintf("AppConfig{Server: %+v, Database: %+v, Auth: [Tokens=%s, File=%s], Stream: [Backlog=%d], Logging: %+v}",
		ac.Server,
		ac.Database,
		strings.Join(masked, ","),
		ac.Auth.TokensFile,
		ac.Stream.BacklogSize(),
		ac.Logging,
	)
}
