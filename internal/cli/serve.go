package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/env-monitor/internal/auth"
	"github.com/afroash/env-monitor/internal/config"
	"github.com/afroash/env-monitor/internal/metrics"
	"github.com/afroash/env-monitor/internal/server"
	"github.com/afroash/env-monitor/internal/storage"
	"github.com/afroash/env-monitor/internal/stream"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Start the HTTP server: the authenticated REST API under /api, the live
event stream at /api/stream, /health and /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadServerConfig()
			if err != nil {
				return err
			}

			logger, closeLog, err := config.NewLogger(cfg.Logging, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeLog()

			logger.Info().
				Str("version", Version).
				Int("port", cfg.Server.Port).
				Str("driver", cfg.Database.Driver).
				Msg("Starting environmental monitor")
			logger.Debug().Str("config", cfg.String()).Msg("Configuration loaded")

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ln, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
			}
			return a.serve(cmd.Context(), ln)
		},
	}
}

// app holds the wired server components for one serve run.
type app struct {
	cfg       *config.AppConfig
	logger    zerolog.Logger
	store     storage.Store
	tokens    *auth.Registry
	hub       *stream.Hub
	collector *metrics.Collector
	handler   http.Handler
}

func newApp(cfg *config.AppConfig, logger zerolog.Logger) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Store opened")

	tokens := auth.NewRegistry(tokenEntries(cfg.Auth.Tokens), logger)
	if cfg.Auth.TokensFile != "" {
		if err := tokens.LoadFile(cfg.Auth.TokensFile); err != nil {
			store.Close()
			return nil, err
		}
	}
	if tokens.Len() == 0 {
		store.Close()
		return nil, errors.New("no auth tokens configured")
	}

	hub := stream.NewHub(cfg.Stream.BacklogSize(), logger, cfg.Server.AllowedOrigins...)
	collector := metrics.New(store, hub.Count, logger)

	srv := server.New(server.Options{
		Store:   store,
		Tokens:  tokens,
		Hub:     hub,
		Metrics: collector,
		Logger:  logger,
		Version: Version,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		tokens:    tokens,
		hub:       hub,
		collector: collector,
		handler:   srv,
	}, nil
}

// serve runs the HTTP server on ln until ctx is done, then shuts down
// gracefully within the configured timeout.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(ctx)
	if a.cfg.Auth.TokensFile != "" {
		go func() {
			if err := a.tokens.Watch(ctx, a.cfg.Auth.TokensFile); err != nil {
				a.logger.Error().Err(err).Msg("Tokens watcher stopped")
			}
		}()
	}

	httpServer := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Server shutdown error")
		return err
	}
	a.logger.Info().Msg("Server stopped")
	return nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Store close failed")
		return
	}
	a.logger.Info().Msg("Store closed")
}

func tokenEntries(tokens []config.TokenEntry) []auth.Entry {
	entries := make([]auth.Entry, 0, len(tokens))
	for _, t := range tokens {
		entries = append(entries, auth.Entry{Token: t.Token, Principal: t.Principal})
	}
	return entries
}
