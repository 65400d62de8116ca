package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gantry/internal/logging"
	"gantry/internal/workflow"
)

// newProcessCommand runs the local pipeline end to end without orchestrator
// submission, useful for inspecting what a run would produce.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process <item-id> <container-path>",
		Short: "Run the triage pipeline locally and write the bundle to disk",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			process, err := workflow.NewProcessor(cfg, logger)
			if err != nil {
				return err
			}

			itemID := args[0]
			runID := "local-" + uuid.NewString()
			bundle, err := process(cmd.Context(), itemID, runID, args[1])
			if err != nil {
				return err
			}

			target := outDir
			if target == "" {
				target = filepath.Join(cfg.Paths.WorkDir, "staging", runID)
			}
			paths, err := bundle.WriteTo(target)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"run_id": runID,
					"item":   itemID,
					"dir":    target,
					"files":  paths,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d files to %s\n", len(paths), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Destination directory for the bundle")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
