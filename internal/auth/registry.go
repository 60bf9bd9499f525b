package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrUnauthorized is returned when a request carries no token or one that is
// not registered.
var ErrUnauthorized = errors.New("unauthorized")

// Entry maps a bearer token to the principal it authenticates.
type Entry struct {
	Token     string `yaml:"token"`
	Principal string `yaml:"principal"`
}

// Registry resolves tokens to principals. Static entries come from config;
// file entries are replaced wholesale on every successful LoadFile.
type Registry struct {
	mu     sync.RWMutex
	static map[string]string
	file   map[string]string
	logger zerolog.Logger
}

// NewRegistry creates a registry seeded with static entries. Entries with an
// empty token are skipped.
func NewRegistry(entries []Entry, logger zerolog.Logger) *Registry {
	r := &Registry{
		static: make(map[string]string, len(entries)),
		file:   make(map[string]string),
		logger: logger,
	}
	for _, e := range entries {
		if e.Token == "" {
			continue
		}
		r.static[e.Token] = principalOrDefault(e.Principal)
	}
	return r
}

// Lookup returns the principal for token.
func (r *Registry) Lookup(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.static[token]; ok {
		return p, true
	}
	p, ok := r.file[token]
	return p, ok
}

// Len returns the number of distinct registered tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.static)
	for token := range r.file {
		if _, dup := r.static[token]; !dup {
			n++
		}
	}
	return n
}

// LoadFile replaces the file-sourced entries with the YAML list at path. On
// error the previous entries stay active.
func (r *Registry) LoadFile(path string) error {
	entries, err := ReadTokensFile(path)
	if err != nil {
		return err
	}

	tokens := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Token == "" {
			return fmt.Errorf("tokens file %s: entry for %q has empty token", path, e.Principal)
		}
		tokens[e.Token] = principalOrDefault(e.Principal)
	}

	r.mu.Lock()
	r.file = tokens
	r.mu.Unlock()

	r.logger.Info().Str("path", path).Int("tokens", len(tokens)).Msg("Tokens file loaded")
	return nil
}

// ReadTokensFile parses a YAML list of entries.
func ReadTokensFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens file: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse tokens file: %w", err)
	}
	return entries, nil
}

// Watch reloads path whenever it is written or replaced, until ctx is done.
// The parent directory is watched so atomic saves (write + rename) are seen.
func (r *Registry) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	r.logger.Info().Str("path", abs).Msg("Watching tokens file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := r.LoadFile(abs); err != nil {
				r.logger.Error().Err(err).Str("path", abs).Msg("Tokens reload failed, keeping previous set")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error().Err(err).Msg("Tokens watcher error")
		}
	}
}

// ParseAuthorization extracts the token from an Authorization header value.
// Both "Bearer <token>" and "Token <token>" are accepted.
func ParseAuthorization(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrUnauthorized, scheme)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	return token, nil
}

func principalOrDefault(p string) string {
	if p == "" {
		return "anonymous"
	}
	return p
}
