package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/backup"
	"github.com/Tiliavir/worklog/internal/model"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a snapshot of all entries and projects",
	Long: `Write every day, task and project as one snapshot document.
Without --out the snapshot goes to stdout. The format follows the file
extension unless --format is given.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Snapshot format: json or yaml")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := snapshotFormat(exportFormat, exportOut)
	if err != nil {
		return err
	}
	data, err := app.bridge.Export(cmd.Context())
	if err != nil {
		return err
	}

	if exportOut == "" {
		return backup.Encode(cmd.OutOrStdout(), data, format)
	}

	if err := writeSnapshotFile(exportOut, data, format); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d day(s) and %d project(s) to %s\n",
		len(data.DailyTasks), len(data.Projects), exportOut)
	return nil
}

// writeSnapshotFile encodes data to a temp file next to path and renames it
// into place, so a failed export leaves an existing snapshot intact.
func writeSnapshotFile(path string, data model.BackupData, format backup.Format) error {
	var buf bytes.Buffer
	if err := backup.Encode(&buf, data, format); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return &ioError{fmt.Errorf("writing temp file: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &ioError{fmt.Errorf("replacing %s: %w", path, err)}
	}
	return nil
}

// snapshotFormat prefers an explicit --format and falls back to the file
// extension.
func snapshotFormat(flag, path string) (backup.Format, error) {
	if flag != "" {
		return backup.ParseFormat(flag)
	}
	return backup.FormatFromPath(path), nil
}
