package main

import (
	"multiverse-server/internal/cosmos"

	"github.com/spf13/cobra"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample only the parent universe for a seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetInt64("seed")

			engine := cosmos.NewEngine(cosmos.WithLogger(commandLogger(cmd)))
			parent, err := engine.SampleRootSeed(seed)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), parent)
			}
			printParent(cmd.OutOrStdout(), *parent)
			return nil
		},
	}

	cmd.Flags().Int64("seed", 42, "Seed in [0, 4294967295]")
	return cmd
}
