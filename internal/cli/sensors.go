package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/storage"
)

func newSensorsCmd(opts *rootOptions) *cobra.Command {
	sensorsCmd := &cobra.Command{
		Use:     "sensors",
		Aliases: []string{"sensor", "s"},
		Short:   "Inspect registered sensors",
		Long:    `Commands that read the sensor registry directly from the configured database.`,
	}

	sensorsCmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List all sensors",
			Long:    `List every sensor with its ID, type, model, installation date, status and reading count.`,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.loadServerConfig()
				if err != nil {
					return err
				}
				store, err := storage.Open(cfg.Database.Driver, cfg.Database.Path, zerolog.Nop())
				if err != nil {
					return err
				}
				defer store.Close()

				sensors, err := store.ListSensors(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch sensors: %w", err)
				}
				readings, err := store.ListReadings(cmd.Context(), 0)
				if err != nil {
					return fmt.Errorf("failed to fetch readings: %w", err)
				}
				perSensor := make(map[int64]int, len(sensors))
				for _, r := range readings {
					perSensor[r.SensorID]++
				}
				return printSensors(cmd.OutOrStdout(), sensors, perSensor)
			},
		},
		&cobra.Command{
			Use:   "types",
			Short: "List the valid sensor type codes",
			RunE: func(cmd *cobra.Command, args []string) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CODE\tNAME")
				for _, t := range models.SensorTypes() {
					fmt.Fprintf(w, "%s\t%s\n", t, t.Label())
				}
				return w.Flush()
			},
		},
	)
	return sensorsCmd
}

func printSensors(out io.Writer, sensors []*models.Sensor, readings map[int64]int) error {
	if len(sensors) == 0 {
		fmt.Fprintln(out, "No sensors found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tMODEL\tINSTALLED\tSTATUS\tREADINGS")
	fmt.Fprintln(w, "--\t----\t-----\t---------\t------\t--------")
	for _, s := range sensors {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			s.ID,
			s.Type,
			s.Model,
			s.InstallationDate,
			s.Status,
			readings[s.ID],
		)
	}
	return w.Flush()
}
