package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/report"
	"github.com/Tiliavir/worklog/internal/timecalc"
)

// filterFlags are shared by list and summary.
type filterFlags struct {
	preset string
	from   string
	to     string
	sort   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.preset, "filter", "all", "Date filter: all, ytd, mtd, wtd, custom")
	cmd.Flags().StringVar(&f.from, "from", "", "Start date for --filter custom (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&f.to, "to", "", "End date for --filter custom (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&f.sort, "sort", "desc", "Sort by date: asc or desc")
}

// build turns the flags into a filter. --from or --to alone imply custom.
func (f *filterFlags) build() (report.Filter, report.Order, error) {
	preset, err := report.ParsePreset(f.preset)
	if err != nil {
		return report.Filter{}, "", err
	}
	if preset == report.All && (f.from != "" || f.to != "") {
		preset = report.Custom
	}
	filter := report.Filter{Preset: preset, From: f.from, To: f.to}
	if err := filter.Validate(); err != nil {
		return report.Filter{}, "", err
	}
	order, err := report.ParseOrder(f.sort)
	if err != nil {
		return report.Filter{}, "", err
	}
	return filter, order, nil
}

var listFilter filterFlags

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged days with their tasks",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [DATE]",
	Short: "Show one day with task and project ids",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

func init() {
	listFilter.register(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	filter, order, err := listFilter.build()
	if err != nil {
		return err
	}
	all, err := app.svc.GetAllDailyTasks(cmd.Context())
	if err != nil {
		return err
	}
	projects, err := projectNames(cmd)
	if err != nil {
		return err
	}
	printList(cmd.OutOrStdout(), report.Apply(all, filter, order, now()), projects, false)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	date := today()
	if len(args) == 1 {
		date = args[0]
	}
	if !model.ValidDate(date) {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}
	dt, err := app.svc.GetDailyTask(cmd.Context(), date)
	if err != nil {
		return err
	}
	if dt == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing logged on %s.\n", date)
		return nil
	}
	projects, err := projectNames(cmd)
	if err != nil {
		return err
	}
	printList(cmd.OutOrStdout(), []model.DailyTask{*dt}, projects, true)
	return nil
}

// projectNames maps project ids to the current names.
func projectNames(cmd *cobra.Command) (map[string]string, error) {
	all, err := app.svc.GetAllProjects(cmd.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, p := range all {
		names[p.ID] = p.Name
	}
	return names, nil
}

// printList prints each day followed by its tasks, grouped by project.
func printList(w io.Writer, days []model.DailyTask, names map[string]string, withIDs bool) {
	if len(days) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	for i, dt := range days {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, dt.Date)

		// Projects listed on the day come first, in their order; tasks of
		// projects missing from the day's list follow.
		var order []string
		hours := map[string]float64{}
		seen := map[string]bool{}
		for _, p := range dt.Projects {
			if !seen[p.ID] {
				order = append(order, p.ID)
				seen[p.ID] = true
			}
			hours[p.ID] = p.Hours()
			if _, ok := names[p.ID]; !ok {
				names[p.ID] = p.Name
			}
		}
		byProject := map[string][]model.Task{}
		for _, t := range dt.Tasks {
			if !seen[t.ProjectID] {
				order = append(order, t.ProjectID)
				seen[t.ProjectID] = true
			}
			byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
		}

		for _, id := range order {
			name := names[id]
			if name == "" {
				name = "(deleted project)"
			}
			line := "  " + name
			if h := hours[id]; h > 0 {
				line += fmt.Sprintf(" (%s)", timecalc.FormatHours(h))
			}
			if withIDs {
				line += "  [" + id + "]"
			}
			fmt.Fprintln(w, line)
			for _, t := range byProject[id] {
				mark := " "
				if t.Completed {
					mark = "x"
				}
				line := fmt.Sprintf("    [%s] %s", mark, t.Description)
				if withIDs {
					line += "  [" + t.ID + "]"
				}
				fmt.Fprintln(w, line)
			}
		}
	}
}
