package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/afroash/env-monitor/internal/auth"
)

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var principal string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a random API token",
		Long: `Generate a random API token and print it as a YAML list entry that can be
appended to the tokens file or to auth.tokens in the server config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := []auth.Entry{{Token: uuid.NewString(), Principal: principal}}
			out, err := yaml.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to encode token: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	newCmd.Flags().StringVarP(&principal, "principal", "p", "anonymous", "name the token authenticates as")

	tokenCmd.AddCommand(newCmd)
	return tokenCmd
}
