package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/afroash/env-monitor/internal/client"
	"github.com/afroash/env-monitor/internal/config"
	"github.com/afroash/env-monitor/internal/models"
)

type watchOptions struct {
	clientConfig string
	url          string
	token        string
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live event stream of a running server",
		Long: `Connect to /api/stream and print every sensor, reading and alert change
as it happens. The connection is re-established with exponential backoff
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.clientConfig)
			if err != nil {
				return err
			}
			if opts.url != "" {
				cfg.Stream.URL = opts.url
			}
			if opts.token != "" {
				cfg.Stream.AuthToken = opts.token
			}
			if root.verbose {
				cfg.Logging.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, closeLog, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			sub := client.NewSubscriber(client.SubscriberConfig{
				URL:                  cfg.Stream.URL,
				AuthToken:            cfg.Stream.AuthToken,
				ReconnectInterval:    cfg.Stream.ReconnectInterval,
				MaxReconnectInterval: cfg.Stream.MaxReconnectInterval,
				PongTimeout:          cfg.Stream.PongTimeout,
			}, logger)

			out := cmd.OutOrStdout()
			err = sub.Run(cmd.Context(), func(e *models.Event) {
				printEvent(out, e)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	watchCmd.Flags().StringVar(&opts.clientConfig, "client-config", "configs/client.yaml", "path to subscriber config file")
	watchCmd.Flags().StringVar(&opts.url, "url", "", "stream URL, overrides the config file")
	watchCmd.Flags().StringVar(&opts.token, "token", "", "API token, overrides the config file")
	return watchCmd
}

// printEvent writes one line per event: timestamp, type and raw payload.
func printEvent(w io.Writer, e *models.Event) {
	fmt.Fprintf(w, "%s  %-16s %s\n",
		e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		e.Type,
		e.Payload,
	)
}
