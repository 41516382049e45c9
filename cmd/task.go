package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Change or remove a logged task (ids are shown by 'wlog show')",
}

var taskDoneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setCompleted(cmd, args[0], true) },
}

var taskUndoCmd = &cobra.Command{
	Use:   "undo ID",
	Short: "Mark a task not completed",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setCompleted(cmd, args[0], false) },
}

var taskEditCmd = &cobra.Command{
	Use:   "edit ID DESCRIPTION...",
	Short: "Change a task's description",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskEdit,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

func init() {
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskUndoCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskDeleteCmd)
}

func setCompleted(cmd *cobra.Command, id string, completed bool) error {
	t, err := app.svc.SetTaskCompleted(cmd.Context(), id, completed)
	if err != nil {
		return err
	}
	state := "open"
	if t.Completed {
		state = "done"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s) is %s\n", t.Description, t.Date, state)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	t, err := app.svc.EditTask(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Task renamed to %q\n", t.Description)
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	t, err := app.svc.GetTask(ctx, args[0])
	if err != nil {
		return err
	}
	if err := app.svc.DeleteTask(ctx, t.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %q from %s\n", t.Description, t.Date)
	return nil
}
