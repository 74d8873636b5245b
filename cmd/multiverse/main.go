package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"multiverse-server/internal/archive"
	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/population"
	"multiverse-server/internal/shared/config"
	"multiverse-server/internal/shared/logger"
	"multiverse-server/internal/shared/utils"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "multiverse",
		Short: "Generate and inspect stochastic universe populations",
		Long: `multiverse samples a parent universe from a seed, derives generations of
child universes from it and reports aggregate statistics.

Runs can be archived to a local SQLite file and exported later.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSampleCmd(),
		newGenerateCmd(),
		newListCmd(),
		newSummarizeCmd(),
		newExportCmd(),
		newTokenCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "multiverse version %s\n", version)
			return nil
		},
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(cmd.ErrOrStderr(), level, false)
}

func addArchiveFlag(cmd *cobra.Command, defaultPath string) {
	cmd.Flags().String("archive", defaultPath, "Path to the SQLite run archive")
}

func defaultArchivePath() string {
	return utils.GetEnv("MULTIVERSE_ARCHIVE", "multiverse.db")
}

// openService wires a population service over the archive named by the
// --archive flag, or over memory when the flag is empty.
func openService(ctx context.Context, cmd *cobra.Command) (*population.Service, func(), error) {
	log := commandLogger(cmd)
	path, _ := cmd.Flags().GetString("archive")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	engine := cosmos.NewEngine(cosmos.WithLogger(log))
	limits := localLimits(cfg.Simulation)

	if path == "" {
		return population.NewService(population.NewMemoryStore(), nil, engine, limits, nil, log), func() {}, nil
	}

	store, err := archive.Open(ctx, path, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close archive", "error", err)
		}
	}
	return population.NewService(store, nil, engine, limits, nil, log), closeFn, nil
}

// localLimits keeps the SIMULATION_* defaults but drops the size caps that
// guard the HTTP API. Local runs may be as large as the machine allows.
func localLimits(sim config.SimulationConfig) config.SimulationConfig {
	sim.MaxGenerations = 0
	sim.MaxChildrenPerGeneration = 0
	sim.MaxGridCells = 0
	return sim
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
