package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gantry/internal/registry"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "trigger <item-id>",
		Short: "Request a triage run for a dataset item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			resp, err := newAPIClient(baseURL).Trigger(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			switch resp.Status {
			case string(registry.DispositionStarted):
				fmt.Fprintf(out, "Run %s started for item %s\n", resp.RunID, args[0])
			case string(registry.DispositionInProgress):
				fmt.Fprintf(out, "Item %s already has run %s in flight\n", args[0], resp.RunID)
			case string(registry.DispositionAlreadyDone):
				fmt.Fprintf(out, "Item %s already processed by run %s (use --force to re-run)\n", args[0], resp.RunID)
			default:
				fmt.Fprintf(out, "Run %s: %s\n", resp.RunID, resp.Status)
			}
			if resp.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n", resp.Warning)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-run even if the item was already processed")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
