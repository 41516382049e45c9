package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/msgraph"
	"github.com/Tiliavir/worklog/internal/timecalc"
)

var (
	outlookSyncFrom    string
	outlookSyncTo      string
	outlookSyncDate    string
	outlookSyncDryRun  bool
	outlookSyncProject string
	outlookSyncTZ      string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Log Outlook calendar events as tasks",
	Long: `Fetch calendar events and log each one as a task of the meetings
project. Re-running a sync updates tasks instead of duplicating them, and the
project's hours on each synced day are set to the length of its meetings.`,
	Args: cobra.NoArgs,
	RunE: runOutlookSync,
}

func init() {
	outlookSyncCmd.Flags().StringVar(&outlookSyncFrom, "from", "", "Start date (YYYY-MM-DD); required when --to is specified")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	outlookSyncCmd.Flags().StringVar(&outlookSyncDate, "date", "", "Sync a specific date (YYYY-MM-DD)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncDryRun, "dry-run", false, "Print planned operations without writing")
	outlookSyncCmd.Flags().StringVar(&outlookSyncProject, "project", "", "Project for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTZ, "timezone", "", "IANA timezone for event times (default from config)")
	outlookCmd.AddCommand(outlookSyncCmd)
}

// syncRange resolves the sync flags into a time range. The default is today.
func syncRange(date, fromFlag, toFlag string, ref time.Time) (time.Time, time.Time, error) {
	loc := ref.Location()
	switch {
	case date != "":
		d, err := timecalc.ParseDate(date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--date: %w", err)
		}
		return timecalc.StartOfDay(d), timecalc.EndOfDay(d), nil

	case fromFlag != "" || toFlag != "":
		if fromFlag == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("--from is required when --to is specified")
		}
		from, err := timecalc.ParseDate(fromFlag, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		to := ref
		if toFlag != "" {
			if to, err = timecalc.ParseDate(toFlag, loc); err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
			}
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
		}
		return timecalc.StartOfDay(from), timecalc.EndOfDay(to), nil
	}
	return timecalc.StartOfDay(ref), timecalc.EndOfDay(ref), nil
}

func runOutlookSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.cfg.Outlook

	timezone := outlookSyncTZ
	if timezone == "" {
		timezone = cfg.Timezone
	}
	project := outlookSyncProject
	if project == "" {
		project = cfg.DefaultProject
	}

	ref := now()
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		ref = ref.In(loc)
	}
	from, to, err := syncRange(outlookSyncDate, outlookSyncFrom, outlookSyncTo, ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	dryTag := ""
	if outlookSyncDryRun {
		dryTag = " [dry-run]"
	}
	fmt.Fprintf(out, "Syncing Outlook events (%s → %s)%s...\n",
		timecalc.DateString(from), timecalc.DateString(to), dryTag)
	fmt.Fprintln(out)

	client, err := msgraph.Authenticate(ctx, msgraph.AuthConfig{
		TenantID: cfg.TenantID,
		ClientID: cfg.ClientID,
	}, out, app.log)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	events, err := client.GetCalendarView(ctx, from, to, timezone)
	if err != nil {
		return fmt.Errorf("failed to fetch calendar events: %w", err)
	}

	result, err := msgraph.SyncEvents(ctx, app.svc, events, msgraph.SyncOptions{
		Project:  project,
		Timezone: timezone,
		DryRun:   outlookSyncDryRun,
		Out:      out,
		Now:      now,
	})
	if err != nil {
		return fmt.Errorf("sync error: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  %d imported\n", result.Imported)
	fmt.Fprintf(out, "  %d skipped\n", result.Skipped)
	fmt.Fprintf(out, "  %d updated\n", result.Updated)
	if result.Errors > 0 {
		return &ioError{fmt.Errorf("%d event(s) could not be synced", result.Errors)}
	}
	return nil
}
