package main

import (
	"github.com/spf13/cobra"
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <run-id>",
		Short: "Print statistics for an archived population",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, closeFn, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := service.Statistics(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printStatistics(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	addArchiveFlag(cmd, defaultArchivePath())
	return cmd
}
