package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`     // debug, info, warn, error
	Format   string `yaml:"format"`    // json or console
	FilePath string `yaml:"file_path"` // empty = stdout only
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
}

// Validate checks level and format
func (l *LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid log level %q", l.Level)
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("log format must be \"json\" or \"console\", got %q", l.Format)
	}
	return nil
}

// NewLogger builds a zerolog logger writing to w, or to FilePath when set.
// The returned closer releases the log file and is a no-op otherwise.
func NewLogger(cfg LoggingConfig, w io.Writer) (zerolog.Logger, func() error, error) {
	closer := func() error { return nil }

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), closer, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out := w
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f.Close
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
