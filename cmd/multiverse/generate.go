package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a population from a seed",
		Long: `Generate samples a parent universe, derives the requested generations of
child universes and prints the aggregate statistics.

Unset values come from --config, then from SIMULATION_* environment defaults.
The SIMULATION_MAX_* size limits of the API server do not apply here; only
SIMULATION_MAX_WORKERS bounds --workers.`,
		Example: `  multiverse generate --generations 5 --children 10 --seed 42
  multiverse generate --config run.yaml --archive runs.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := runRequest(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			service, closeFn, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := service.Create(ctx, req)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			stored, err := service.Get(ctx, result.Record.ID)
			if err != nil {
				return err
			}
			printGenerateReport(cmd.OutOrStdout(), stored, result.Statistics)
			if path, _ := cmd.Flags().GetString("archive"); path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nArchived as %s in %s\n", result.Record.ID, path)
			}
			return nil
		},
	}

	cmd.Flags().Int("generations", 0, "Number of generations to derive")
	cmd.Flags().Int("children", 0, "Children per generation")
	cmd.Flags().Int64("seed", 0, "Seed in [0, 4294967295]")
	cmd.Flags().Bool("parallel", false, "Derive children concurrently on per-child streams")
	cmd.Flags().Int("workers", 0, "Worker count for --parallel")
	cmd.Flags().String("config", "", "YAML run file")
	addArchiveFlag(cmd, "")

	return cmd
}

