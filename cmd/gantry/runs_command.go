package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List triage runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			resp, err := newAPIClient(baseURL).Runs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			if isTerminal(out) {
				fmt.Fprintln(out, renderRunsTable(resp.Runs))
				return nil
			}
			for _, run := range resp.Runs {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
					run.RunID, run.ItemID, run.Status, formatProgress(run.Progress))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
