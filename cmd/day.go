package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/worklog"
)

var dayDeleteKeepTasks bool

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Manage whole days",
}

var dayDeleteCmd = &cobra.Command{
	Use:   "delete DATE",
	Short: "Delete a day's entry and all of its tasks",
	Long: `Delete a day's entry and all of its tasks. With --keep-tasks only the
entry (its project list and hours) is removed; the tasks stay and show up again
once a new entry is created for the date.`,
	Args: cobra.ExactArgs(1),
	RunE: runDayDelete,
}

func init() {
	dayDeleteCmd.Flags().BoolVar(&dayDeleteKeepTasks, "keep-tasks", false, "Remove only the entry, keep its tasks")
	dayCmd.AddCommand(dayDeleteCmd)
}

func runDayDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	date := args[0]
	if !model.ValidDate(date) {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}

	if !dayDeleteKeepTasks {
		if err := app.svc.DeleteDay(ctx, date); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", date)
		return nil
	}

	dt, err := app.svc.GetDailyTask(ctx, date)
	if err != nil {
		return err
	}
	if dt == nil {
		return worklog.ErrDailyTaskNotFound
	}
	if err := app.svc.DeleteDailyTask(ctx, dt.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted the entry for %s, kept %d task(s)\n", date, len(dt.Tasks))
	return nil
}
