package msgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/timecalc"
	"github.com/Tiliavir/worklog/internal/worklog"
)

// eventNamespace seeds the task ids derived from Graph event ids, so that
// syncing the same event twice addresses the same task.
var eventNamespace = uuid.MustParse("5b8f8a53-2c1e-4f7e-9a43-0d6c1f3b7e21")

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	// Project is the name of the project events are logged under. It is
	// created on first use.
	Project string
	// Timezone is the IANA zone event times are reported in; empty means UTC.
	Timezone string
	DryRun   bool
	// Out receives one progress line per event. Nil discards them.
	Out io.Writer
	// Now decides whether a meeting is over; nil means time.Now.
	Now func() time.Time
}

// Meeting is a calendar event mapped onto the worklog.
type Meeting struct {
	Task  model.Task
	Start time.Time
	End   time.Time
}

// Hours is the meeting's length in hours.
func (m Meeting) Hours() float64 {
	return m.End.Sub(m.Start).Hours()
}

// TaskID returns the task id used for a Graph event id.
func TaskID(eventID string) string {
	return uuid.NewSHA1(eventNamespace, []byte(eventID)).String()
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// describe turns subject and location into a task description.
func describe(event CalendarEvent) string {
	subject := strings.TrimSpace(event.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	if loc := strings.TrimSpace(event.Location.DisplayName); loc != "" {
		return subject + " @ " + loc
	}
	return subject
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	if event.IsCancelled {
		return true
	}
	if event.IsAllDay {
		return true
	}
	if event.Sensitivity == "private" {
		return true
	}
	if event.ShowAs == "free" {
		return true
	}
	if event.Start.DateTime == "" || event.End.DateTime == "" {
		return true
	}
	return false
}

// MapEvent converts a Graph CalendarEvent into a task of projectID, dated by
// the event's start. Meetings that ended before now are marked completed.
func MapEvent(event CalendarEvent, timezone, projectID string, now time.Time) (Meeting, error) {
	start, err := parseGraphTime(event.Start.DateTime, timezone)
	if err != nil {
		return Meeting{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, timezone)
	if err != nil {
		return Meeting{}, fmt.Errorf("parsing end time: %w", err)
	}
	if end.Before(start) {
		return Meeting{}, fmt.Errorf("event ends before it starts")
	}
	return Meeting{
		Task: model.Task{
			ID:          TaskID(event.ID),
			Description: describe(event),
			ProjectID:   projectID,
			Date:        timecalc.DateString(start),
			Completed:   !end.After(now),
		},
		Start: start,
		End:   end,
	}, nil
}

// SyncEvents logs events as tasks of opts.Project. Each event maps to a task
// with an id derived from the event id, so a re-sync updates instead of
// duplicating. After the events are stored, the project's hours on every
// touched day are set to the total length of that day's meetings.
func SyncEvents(ctx context.Context, svc *worklog.Service, events []CalendarEvent, opts SyncOptions) (SyncResult, error) {
	var result SyncResult
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	project, err := syncProject(ctx, svc, opts)
	if err != nil {
		return result, err
	}

	hours := map[string]float64{}
	for _, event := range events {
		if shouldSkip(event) {
			continue
		}

		m, err := MapEvent(event, opts.Timezone, project.ID, now())
		if err != nil {
			fmt.Fprintf(out, "  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}
		dur := fmt.Sprintf(" (%s)", timecalc.FormatDuration(int64(m.End.Sub(m.Start).Seconds())))

		existing, err := svc.GetTask(ctx, m.Task.ID)
		switch {
		case err == nil:
			if existing == m.Task {
				fmt.Fprintf(out, "  – Skipped:  %s (already exists)\n", m.Task.Description)
				result.Skipped++
				hours[m.Task.Date] += m.Hours()
				continue
			}
			if !opts.DryRun {
				if err := updateMeeting(ctx, svc, existing, m.Task, project); err != nil {
					fmt.Fprintf(out, "  ! Error updating %q: %v\n", m.Task.Description, err)
					result.Errors++
					continue
				}
			}
			fmt.Fprintf(out, "  ↑ Updated:  %s%s\n", m.Task.Description, dur)
			result.Updated++
			hours[m.Task.Date] += m.Hours()
			continue
		case !errors.Is(err, worklog.ErrTaskNotFound):
			fmt.Fprintf(out, "  ! Error loading %q: %v\n", m.Task.Description, err)
			result.Errors++
			continue
		}

		if !opts.DryRun {
			err := addMeeting(ctx, svc, m.Task, project)
			var dup *worklog.DuplicateTaskError
			if errors.As(err, &dup) {
				fmt.Fprintf(out, "  – Skipped:  %s (already logged by hand)\n", m.Task.Description)
				result.Skipped++
				continue
			}
			if err != nil {
				fmt.Fprintf(out, "  ! Error saving %q: %v\n", m.Task.Description, err)
				result.Errors++
				continue
			}
		}
		fmt.Fprintf(out, "  ✓ Imported: %s%s\n", m.Task.Description, dur)
		result.Imported++
		hours[m.Task.Date] += m.Hours()
	}

	if opts.DryRun {
		return result, nil
	}
	for date, h := range hours {
		if err := svc.SetProjectHours(ctx, date, project.ID, h); err != nil {
			fmt.Fprintf(out, "  ! Error booking hours on %s: %v\n", date, err)
			result.Errors++
		}
	}
	return result, nil
}

// syncProject resolves the target project. A dry run never creates it.
func syncProject(ctx context.Context, svc *worklog.Service, opts SyncOptions) (model.Project, error) {
	if strings.TrimSpace(opts.Project) == "" {
		return model.Project{}, fmt.Errorf("no project given for imported events")
	}
	if opts.DryRun {
		p, err := svc.FindProjectByName(ctx, opts.Project)
		if err != nil {
			return model.Project{}, err
		}
		if p == nil {
			return model.Project{ID: TaskID("project:" + opts.Project), Name: opts.Project}, nil
		}
		return *p, nil
	}
	return svc.EnsureProject(ctx, opts.Project)
}

// addMeeting appends task to its day, creating the day when needed.
func addMeeting(ctx context.Context, svc *worklog.Service, task model.Task, project model.Project) error {
	dt, err := svc.GetDailyTask(ctx, task.Date)
	if err != nil {
		return err
	}
	if dt == nil {
		return svc.CreateDailyTask(ctx, worklog.NewDailyTask(task.Date, []model.Task{task}, []model.Project{project}))
	}
	_, err = svc.AddTasks(ctx, task.Date, []model.Task{task})
	return err
}

// updateMeeting rewrites a previously synced task. A meeting moved to another
// day or project is removed and added again.
func updateMeeting(ctx context.Context, svc *worklog.Service, old, task model.Task, project model.Project) error {
	if old.Date == task.Date && old.ProjectID == task.ProjectID {
		if old.Description != task.Description {
			if _, err := svc.EditTask(ctx, task.ID, task.Description); err != nil {
				return err
			}
		}
		_, err := svc.SetTaskCompleted(ctx, task.ID, task.Completed)
		return err
	}
	if err := svc.DeleteTask(ctx, old.ID); err != nil {
		return err
	}
	return addMeeting(ctx, svc, task, project)
}
