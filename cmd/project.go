package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/worklog"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add NAME...",
	Short: "Create a project",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename PROJECT NEW-NAME...",
	Short: "Rename a project (PROJECT is an id or a name)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runProjectRename,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete PROJECT",
	Short: "Delete a project and every task logged under it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectHoursCmd = &cobra.Command{
	Use:   "hours DATE PROJECT HOURS",
	Short: "Set the hours spent on a project on one day",
	Args:  cobra.ExactArgs(3),
	RunE:  runProjectHours,
}

func init() {
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectHoursCmd)
}

// resolveProject finds a project by id, then by name.
func resolveProject(ctx context.Context, ref string) (model.Project, error) {
	p, err := app.svc.GetProject(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, worklog.ErrProjectNotFound) {
		return model.Project{}, err
	}
	byName, err := app.svc.FindProjectByName(ctx, ref)
	if err != nil {
		return model.Project{}, err
	}
	if byName == nil {
		return model.Project{}, fmt.Errorf("%w: %q", worklog.ErrProjectNotFound, ref)
	}
	return *byName, nil
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := strings.Join(args, " ")
	existing, err := app.svc.FindProjectByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("project %q already exists", existing.Name)
	}
	p, err := app.svc.EnsureProject(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created project %s  [%s]\n", p.Name, p.ID)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projects, err := app.svc.GetAllProjects(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects yet.")
		return nil
	}
	for _, p := range projects {
		tasks, err := app.svc.GetTasksByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-30s %4d task(s)  [%s]\n", p.Name, len(tasks), p.ID)
	}
	return nil
}

func runProjectRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := resolveProject(ctx, args[0])
	if err != nil {
		return err
	}
	renamed, err := app.svc.RenameProject(ctx, p.ID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Renamed %s to %s\n", p.Name, renamed.Name)
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := resolveProject(ctx, args[0])
	if err != nil {
		return err
	}
	if err := app.svc.DeleteProject(ctx, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted project %s and its tasks\n", p.Name)
	return nil
}

func runProjectHours(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	date := args[0]
	if !model.ValidDate(date) {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}
	p, err := resolveProject(ctx, args[1])
	if err != nil {
		return err
	}
	hours, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid hours %q: %w", args[2], err)
	}
	if err := app.svc.SetProjectHours(ctx, date, p.ID, hours); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s on %s: %s\n", p.Name, date, strconv.FormatFloat(hours, 'f', -1, 64))
	return nil
}
