package main

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived populations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, closeFn, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := service.List(ctx)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				if records == nil {
					return writeJSON(cmd.OutOrStdout(), []any{})
				}
				return writeJSON(cmd.OutOrStdout(), records)
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	addArchiveFlag(cmd, defaultArchivePath())
	return cmd
}
