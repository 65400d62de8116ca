package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"gantry/internal/daemon"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRunsTable renders run records as a rounded table; progress is
// right-aligned.
func renderRunsTable(runs []daemon.StatusResponse) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"RUN", "ITEM", "STATE", "PROGRESS", "JOB", "ERROR"})
	for _, run := range runs {
		tw.AppendRow(table.Row{
			shortID(run.RunID),
			run.ItemID,
			run.Status,
			formatProgress(run.Progress),
			run.JobID,
			run.Error,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatProgress(p daemon.ProgressView) string {
	if p.Label != "" {
		return fmt.Sprintf("%.0f%% (%s)", p.Percent, p.Label)
	}
	return fmt.Sprintf("%.0f%%", p.Percent)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
