package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/backup"
)

var importFormat string

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace all data with a snapshot",
	Long: `Replace every day, task and project with the content of a snapshot
written by 'wlog export'. A snapshot that fails validation leaves the
database untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "Snapshot format: json or yaml (default from extension)")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := snapshotFormat(importFormat, path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return &ioError{err}
	}
	defer f.Close()

	data, err := backup.Decode(f, format)
	if err != nil {
		return err
	}
	if err := app.bridge.Import(cmd.Context(), data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d day(s) and %d project(s) from %s\n",
		len(data.DailyTasks), len(data.Projects), path)
	return nil
}
