package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/env-monitor/internal/config"
)

// Version is reported by `envmon version` and /health.
const Version = "v0.3.0"

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the envmon command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "envmon",
		Short: "Environmental monitoring REST service",
		Long: `envmon stores sensors, the readings they record and the alerts raised
against them, and serves them over an authenticated REST API with a live
event stream.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/server.yaml", "path to server config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose (debug) logging")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSensorsCmd(opts),
		newTokenCmd(),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadServerConfig reads the server config and applies --verbose.
func (o *rootOptions) loadServerConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Logging.Level = zerolog.LevelDebugValue
	}
	return cfg, nil
}
