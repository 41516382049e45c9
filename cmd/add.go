package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/model"
)

var (
	addDate    string
	addProject string
	addHours   float64
)

var addCmd = &cobra.Command{
	Use:   "add DESCRIPTION...",
	Short: "Log one or more tasks for a day",
	Long: `Log tasks for a day. Each argument becomes one task of --project.
The day entry and the project are created on first use; later calls append to
the day. A task whose description is already logged on that day (ignoring
case) rejects the batch and nothing is written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addDate, "date", "", "Day to log on (YYYY-MM-DD); defaults to today")
	addCmd.Flags().StringVarP(&addProject, "project", "p", "", "Project name; created if it does not exist")
	addCmd.Flags().Float64Var(&addHours, "hours", 0, "Hours spent on the project that day")
	_ = addCmd.MarkFlagRequired("project")
}

func runAdd(cmd *cobra.Command, args []string) error {
	date := addDate
	if date == "" {
		date = today()
	}
	if !model.ValidDate(date) {
		return fmt.Errorf("invalid --date value %q (want YYYY-MM-DD)", date)
	}

	var hours *float64
	if cmd.Flags().Changed("hours") {
		hours = model.Float(addHours)
	}
	_, project, err := app.svc.LogTasks(cmd.Context(), date, addProject, args, hours)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged %d task(s) on %s under %s\n", len(args), date, project.Name)
	return nil
}
