package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the current state of a triage run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			resp, err := newAPIClient(baseURL).Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:      %s\n", resp.RunID)
			fmt.Fprintf(out, "Item:     %s\n", resp.ItemID)
			fmt.Fprintf(out, "State:    %s\n", resp.Status)
			fmt.Fprintf(out, "Progress: %s\n", formatProgress(resp.Progress))
			if resp.JobID != "" {
				fmt.Fprintf(out, "Job:      %s (%s)\n", resp.JobID, resp.DAGID)
			}
			if resp.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
