package msgraph_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/msgraph"
	"github.com/Tiliavir/worklog/internal/storage"
	"github.com/Tiliavir/worklog/internal/worklog"
)

// syncNow is after every event used below, so synced meetings are completed.
var syncNow = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func makeEvent(id, subject, start, end string) msgraph.CalendarEvent {
	return msgraph.CalendarEvent{
		ID:          id,
		Subject:     subject,
		BodyPreview: "",
		IsAllDay:    false,
		IsCancelled: false,
		Sensitivity: "normal",
		ShowAs:      "busy",
		Start: struct {
			DateTime string `json:"dateTime"`
			TimeZone string `json:"timeZone"`
		}{DateTime: start, TimeZone: "UTC"},
		End: struct {
			DateTime string `json:"dateTime"`
			TimeZone string `json:"timeZone"`
		}{DateTime: end, TimeZone: "UTC"},
	}
}

func newService(t *testing.T) *worklog.Service {
	t.Helper()
	store := storage.New(filepath.Join(t.TempDir(), "worklog.db"), nil, nil)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return worklog.New(store, nil)
}

func defaultOpts() msgraph.SyncOptions {
	return msgraph.SyncOptions{Project: "Meetings", Timezone: "UTC", Now: syncNow}
}

func TestMapEvent(t *testing.T) {
	event := makeEvent("ext-id-1", "Sprint Planning", "2026-02-27T09:00:00", "2026-02-27T10:30:00")
	m, err := msgraph.MapEvent(event, "UTC", "p1", syncNow())
	if err != nil {
		t.Fatalf("MapEvent: %v", err)
	}
	if m.Task.ID != msgraph.TaskID("ext-id-1") {
		t.Errorf("ID = %q, want derived from event id", m.Task.ID)
	}
	if m.Task.Description != "Sprint Planning" {
		t.Errorf("Description = %q", m.Task.Description)
	}
	if m.Task.ProjectID != "p1" || m.Task.Date != "2026-02-27" {
		t.Errorf("ProjectID/Date = %q/%q", m.Task.ProjectID, m.Task.Date)
	}
	if !m.Task.Completed {
		t.Error("past meeting should be completed")
	}
	if m.Hours() != 1.5 {
		t.Errorf("Hours = %v, want 1.5", m.Hours())
	}
}

func TestMapEvent_WithLocation(t *testing.T) {
	event := makeEvent("ext-id-2", "Standup", "2026-02-27T10:00:00", "2026-02-27T10:15:00")
	event.Location.DisplayName = "Zoom"

	m, err := msgraph.MapEvent(event, "UTC", "p1", time.Date(2026, 2, 27, 10, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MapEvent: %v", err)
	}
	if m.Task.Description != "Standup @ Zoom" {
		t.Errorf("Description = %q, want %q", m.Task.Description, "Standup @ Zoom")
	}
	if m.Task.Completed {
		t.Error("running meeting should not be completed")
	}
}

func TestMapEvent_Timezone(t *testing.T) {
	// 23:30 in Berlin on the 27th is still the 27th locally.
	event := makeEvent("tz", "Late call", "2026-02-27T23:30:00.0000000", "2026-02-28T00:15:00.0000000")
	m, err := msgraph.MapEvent(event, "Europe/Berlin", "p1", syncNow())
	if err != nil {
		t.Fatalf("MapEvent: %v", err)
	}
	if m.Task.Date != "2026-02-27" {
		t.Errorf("Date = %q, want local start date", m.Task.Date)
	}
}

func TestTaskIDStable(t *testing.T) {
	if msgraph.TaskID("abc") != msgraph.TaskID("abc") {
		t.Error("TaskID is not deterministic")
	}
	if msgraph.TaskID("abc") == msgraph.TaskID("abd") {
		t.Error("different events share a task id")
	}
}

func TestSyncEvents_Import(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
		makeEvent("ext-2", "Retro", "2026-02-27T14:00:00", "2026-02-27T15:00:00"),
	}
	var out bytes.Buffer
	opts := defaultOpts()
	opts.Out = &out

	result, err := msgraph.SyncEvents(ctx, svc, events, opts)
	if err != nil {
		t.Fatalf("SyncEvents: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 || result.Errors != 0 {
		t.Errorf("result = %+v, want 2 imported", result)
	}
	if !strings.Contains(out.String(), "Imported: Architecture Board (1h 30m)") {
		t.Errorf("progress output:\n%s", out.String())
	}

	dt, err := svc.GetDailyTask(ctx, "2026-02-27")
	if err != nil || dt == nil {
		t.Fatalf("GetDailyTask = %v, %v", dt, err)
	}
	if len(dt.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(dt.Tasks))
	}
	if len(dt.Projects) != 1 || dt.Projects[0].Name != "Meetings" || dt.Projects[0].Hours() != 2.5 {
		t.Errorf("projects = %+v, want Meetings with 2.5h", dt.Projects)
	}
}

func TestSyncEvents_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
	}

	r1, err := msgraph.SyncEvents(ctx, svc, events, defaultOpts())
	if err != nil {
		t.Fatalf("first SyncEvents: %v", err)
	}
	if r1.Imported != 1 {
		t.Errorf("first sync: Imported = %d, want 1", r1.Imported)
	}

	r2, err := msgraph.SyncEvents(ctx, svc, events, defaultOpts())
	if err != nil {
		t.Fatalf("second SyncEvents: %v", err)
	}
	if r2.Imported != 0 || r2.Skipped != 1 {
		t.Errorf("second sync = %+v, want 1 skipped", r2)
	}

	tasks, err := svc.GetTasksByDate(ctx, "2026-02-27")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d after 2 syncs, want 1", len(tasks))
	}
	dt, _ := svc.GetDailyTask(ctx, "2026-02-27")
	if dt.Projects[0].Hours() != 1.5 {
		t.Errorf("hours = %v after re-sync, want 1.5", dt.Projects[0].Hours())
	}
}

func TestSyncEvents_Update(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	event := makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00")

	if _, err := msgraph.SyncEvents(ctx, svc, []msgraph.CalendarEvent{event}, defaultOpts()); err != nil {
		t.Fatalf("first SyncEvents: %v", err)
	}

	event.Subject = "Architecture Board (updated)"
	r2, err := msgraph.SyncEvents(ctx, svc, []msgraph.CalendarEvent{event}, defaultOpts())
	if err != nil {
		t.Fatalf("second SyncEvents: %v", err)
	}
	if r2.Updated != 1 {
		t.Errorf("Updated = %d, want 1", r2.Updated)
	}

	task, err := svc.GetTask(ctx, msgraph.TaskID("ext-1"))
	if err != nil {
		t.Fatal(err)
	}
	if task.Description != "Architecture Board (updated)" {
		t.Errorf("Description = %q, want updated", task.Description)
	}
}

func TestSyncEvents_Moved(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	event := makeEvent("ext-1", "Planning", "2026-02-26T09:00:00", "2026-02-26T10:00:00")

	if _, err := msgraph.SyncEvents(ctx, svc, []msgraph.CalendarEvent{event}, defaultOpts()); err != nil {
		t.Fatal(err)
	}
	event.Start.DateTime = "2026-02-27T09:00:00"
	event.End.DateTime = "2026-02-27T10:00:00"
	r, err := msgraph.SyncEvents(ctx, svc, []msgraph.CalendarEvent{event}, defaultOpts())
	if err != nil {
		t.Fatal(err)
	}
	if r.Updated != 1 {
		t.Errorf("result = %+v, want 1 updated", r)
	}
	if old, _ := svc.GetTasksByDate(ctx, "2026-02-26"); len(old) != 0 {
		t.Errorf("old day still has %d tasks", len(old))
	}
	if moved, _ := svc.GetTasksByDate(ctx, "2026-02-27"); len(moved) != 1 {
		t.Errorf("new day has %d tasks, want 1", len(moved))
	}
}

func TestSyncEvents_SkipFiltered(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*msgraph.CalendarEvent)
	}{
		{"cancelled", func(e *msgraph.CalendarEvent) { e.IsCancelled = true }},
		{"all-day", func(e *msgraph.CalendarEvent) { e.IsAllDay = true }},
		{"private", func(e *msgraph.CalendarEvent) { e.Sensitivity = "private" }},
		{"free", func(e *msgraph.CalendarEvent) { e.ShowAs = "free" }},
		{"no end", func(e *msgraph.CalendarEvent) { e.End.DateTime = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t)
			e := makeEvent("c1", "Filtered", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
			tt.modify(&e)
			r, err := msgraph.SyncEvents(context.Background(), svc, []msgraph.CalendarEvent{e}, defaultOpts())
			if err != nil {
				t.Fatalf("SyncEvents: %v", err)
			}
			if r.Imported != 0 {
				t.Errorf("expected 0 imported for %s event, got %d", tt.name, r.Imported)
			}
		})
	}
}

func TestSyncEvents_DryRun(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-dry", "Dry Run Event", "2026-02-27T09:00:00", "2026-02-27T10:00:00"),
	}
	opts := defaultOpts()
	opts.DryRun = true

	result, err := msgraph.SyncEvents(ctx, svc, events, opts)
	if err != nil {
		t.Fatalf("SyncEvents dry-run: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("dry-run Imported = %d, want 1", result.Imported)
	}

	if dt, _ := svc.GetDailyTask(ctx, "2026-02-27"); dt != nil {
		t.Errorf("dry-run created an entry: %+v", dt)
	}
	if p, _ := svc.FindProjectByName(ctx, "Meetings"); p != nil {
		t.Errorf("dry-run created project %+v", p)
	}
}

func TestSyncEvents_PreservesManualTasks(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	work, err := svc.EnsureProject(ctx, "Work")
	if err != nil {
		t.Fatal(err)
	}
	manual := worklog.NewDailyTask("2026-02-27", []model.Task{
		{ID: "manual-1", Description: "Code review", ProjectID: work.ID},
		{ID: "manual-2", Description: "Retro", ProjectID: work.ID},
	}, []model.Project{work})
	if err := svc.CreateDailyTask(ctx, manual); err != nil {
		t.Fatal(err)
	}

	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Meeting", "2026-02-27T11:00:00", "2026-02-27T12:00:00"),
		makeEvent("ext-2", "retro", "2026-02-27T15:00:00", "2026-02-27T16:00:00"),
	}
	r, err := msgraph.SyncEvents(ctx, svc, events, defaultOpts())
	if err != nil {
		t.Fatalf("SyncEvents: %v", err)
	}
	if r.Imported != 1 || r.Skipped != 1 {
		t.Errorf("result = %+v, want 1 imported and the hand-logged retro skipped", r)
	}

	dt, err := svc.GetDailyTask(ctx, "2026-02-27")
	if err != nil {
		t.Fatal(err)
	}
	if len(dt.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3 (2 manual + 1 imported)", len(dt.Tasks))
	}
	if len(dt.Projects) != 2 {
		t.Errorf("projects = %+v, want Work and Meetings", dt.Projects)
	}
	if got, err := svc.GetTask(ctx, "manual-1"); err != nil || got.Description != "Code review" {
		t.Errorf("manual task changed: %+v, %v", got, err)
	}
}

func TestSyncEvents_RequiresProject(t *testing.T) {
	svc := newService(t)
	opts := defaultOpts()
	opts.Project = " "
	if _, err := msgraph.SyncEvents(context.Background(), svc, nil, opts); err == nil {
		t.Error("expected an error without a project")
	}
}
