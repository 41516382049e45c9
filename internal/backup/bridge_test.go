package backup_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/worklog/internal/backup"
	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/storage"
	"github.com/Tiliavir/worklog/internal/worklog"
)

type fixture struct {
	svc    *worklog.Service
	bridge *backup.Bridge
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := storage.New(filepath.Join(t.TempDir(), "worklog.db"), nil, nil)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	svc := worklog.New(store, nil)
	return fixture{svc: svc, bridge: backup.New(store, svc, nil)}
}

func seed(t *testing.T, svc *worklog.Service) {
	t.Helper()
	ctx := context.Background()
	ops, err := svc.EnsureProject(ctx, "Ops")
	if err != nil {
		t.Fatal(err)
	}
	docs, err := svc.EnsureProject(ctx, "Docs")
	if err != nil {
		t.Fatal(err)
	}
	days := []model.DailyTask{
		worklog.NewDailyTask("2024-01-10", []model.Task{
			{Description: "Patch", ProjectID: ops.ID, Completed: true},
			{Description: "Handbook", ProjectID: docs.ID},
		}, []model.Project{ops, docs}),
		worklog.NewDailyTask("2024-01-11", []model.Task{
			{Description: "Deploy", ProjectID: ops.ID},
		}, []model.Project{ops}),
	}
	for _, dt := range days {
		if err := svc.CreateDailyTask(ctx, dt); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.SetProjectHours(ctx, "2024-01-10", ops.ID, 3.5); err != nil {
		t.Fatal(err)
	}
}

func byID[T any](items []T, id func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[id(it)] = it
	}
	return m
}

func summaryKey(dt model.DailyTask) string { return dt.ID }
func projectKey(p model.Project) string    { return p.ID }
func taskKey(t model.Task) string          { return t.ID }

func assertSameState(t *testing.T, want, got model.BackupData) {
	t.Helper()
	if !reflect.DeepEqual(byID(want.Projects, projectKey), byID(got.Projects, projectKey)) {
		t.Errorf("projects differ:\nwant %+v\ngot  %+v", want.Projects, got.Projects)
	}
	ws, gs := byID(want.DailyTasks, summaryKey), byID(got.DailyTasks, summaryKey)
	if len(ws) != len(gs) {
		t.Fatalf("got %d entries, want %d", len(gs), len(ws))
	}
	for id, w := range ws {
		g, ok := gs[id]
		if !ok {
			t.Errorf("entry %s missing", id)
			continue
		}
		if w.Date != g.Date || !reflect.DeepEqual(byID(w.Projects, projectKey), byID(g.Projects, projectKey)) {
			t.Errorf("entry %s differs:\nwant %+v\ngot  %+v", id, w, g)
		}
		if !reflect.DeepEqual(byID(w.Tasks, taskKey), byID(g.Tasks, taskKey)) {
			t.Errorf("entry %s tasks differ:\nwant %+v\ngot  %+v", id, w.Tasks, g.Tasks)
		}
	}
}

func TestExportShape(t *testing.T) {
	f := newFixture(t)
	seed(t, f.svc)

	data, err := f.bridge.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if data.Version != "1.0.0" {
		t.Errorf("version = %q", data.Version)
	}
	if _, err := time.Parse(time.RFC3339, data.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", data.Timestamp, err)
	}
	if len(data.DailyTasks) != 2 || len(data.Projects) != 2 {
		t.Errorf("exported %d entries / %d projects, want 2 / 2", len(data.DailyTasks), len(data.Projects))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []backup.Format{backup.FormatJSON, backup.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			seed(t, f.svc)

			before, err := f.bridge.Export(ctx)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := backup.Encode(&buf, before, format); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			// Change the store so the import has something to replace.
			if _, err := f.svc.EnsureProject(ctx, "Scratch"); err != nil {
				t.Fatal(err)
			}
			if err := f.svc.DeleteDay(ctx, "2024-01-11"); err != nil {
				t.Fatal(err)
			}

			decoded, err := backup.Decode(&buf, format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if err := f.bridge.Import(ctx, decoded); err != nil {
				t.Fatalf("Import: %v", err)
			}
			after, err := f.bridge.Export(ctx)
			if err != nil {
				t.Fatal(err)
			}
			assertSameState(t, before, after)
		})
	}
}

func TestImportInvalidLeavesStoreUnchanged(t *testing.T) {
	valid := model.DailyTask{ID: "d1", Date: "2024-02-01"}
	tests := []struct {
		name string
		data model.BackupData
	}{
		{"project without name", model.BackupData{Projects: []model.Project{{ID: "p1"}}}},
		{"entry without id", model.BackupData{DailyTasks: []model.DailyTask{{Date: "2024-02-01"}}}},
		{"entry with bad date", model.BackupData{DailyTasks: []model.DailyTask{{ID: "d1", Date: "01/02/2024"}}}},
		{"task without project", model.BackupData{DailyTasks: []model.DailyTask{{
			ID: "d1", Date: "2024-02-01", Tasks: []model.Task{{ID: "t1", Description: "x"}},
		}}}},
		{"task without description", model.BackupData{DailyTasks: []model.DailyTask{{
			ID: "d1", Date: "2024-02-01", Tasks: []model.Task{{ID: "t1", ProjectID: "p1"}},
		}}}},
		{"negative hours", model.BackupData{Projects: []model.Project{{ID: "p1", Name: "Ops", HoursSpent: model.Float(-1)}}}},
		{"duplicate dates", model.BackupData{DailyTasks: []model.DailyTask{valid, {ID: "d2", Date: "2024-02-01"}}}},
		{"unknown version", model.BackupData{Version: "2.0.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			seed(t, f.svc)
			before, err := f.bridge.Export(ctx)
			if err != nil {
				t.Fatal(err)
			}

			err = f.bridge.Import(ctx, tt.data)
			if !errors.Is(err, backup.ErrImportFailed) {
				t.Fatalf("Import = %v, want ErrImportFailed", err)
			}
			var ierr *backup.ImportError
			if !errors.As(err, &ierr) {
				t.Errorf("error %T is not *ImportError", err)
			}

			after, err := f.bridge.Export(ctx)
			if err != nil {
				t.Fatal(err)
			}
			assertSameState(t, before, after)
		})
	}
}

func TestImportMissingArraysClearsStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f.svc)

	data, err := backup.Decode(strings.NewReader(`{"version":"1.0.0","extra":true}`), backup.FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := f.bridge.Import(ctx, data); err != nil {
		t.Fatalf("Import: %v", err)
	}
	after, err := f.bridge.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(after.DailyTasks) != 0 || len(after.Projects) != 0 {
		t.Errorf("store not cleared: %+v", after)
	}
}

func TestImportTaskInheritsEntryDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	doc := `{
  "dailyTasks": [{
    "id": "d1", "date": "2024-03-04",
    "projects": [{"id": "p1", "name": "Ops", "hoursSpent": 2}],
    "tasks": [{"id": "t1", "description": "Patch", "projectId": "p1", "completed": false}]
  }],
  "projects": [{"id": "p1", "name": "Ops"}],
  "version": "1.0.0",
  "timestamp": "2024-03-05T08:00:00Z"
}`
	data, err := backup.Decode(strings.NewReader(doc), backup.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.bridge.Import(ctx, data); err != nil {
		t.Fatalf("Import: %v", err)
	}
	tasks, err := f.svc.GetTasksByDate(ctx, "2024-03-04")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("tasks for 2024-03-04 = %+v", tasks)
	}
	dt, err := f.svc.GetDailyTask(ctx, "2024-03-04")
	if err != nil || dt == nil {
		t.Fatalf("GetDailyTask = %v, %v", dt, err)
	}
	if dt.Projects[0].Hours() != 2 {
		t.Errorf("per-day hours = %v, want 2", dt.Projects[0].Hours())
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format backup.Format
	}{
		{"empty json", "", backup.FormatJSON},
		{"broken json", `{"dailyTasks": [`, backup.FormatJSON},
		{"wrong type", `{"projects": "none"}`, backup.FormatJSON},
		{"broken yaml", "projects: [", backup.FormatYAML},
		{"empty yaml", "", backup.FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backup.Decode(strings.NewReader(tt.input), tt.format)
			if !errors.Is(err, backup.ErrImportFailed) {
				t.Errorf("Decode = %v, want ErrImportFailed", err)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want backup.Format
	}{
		{"backup.json", backup.FormatJSON},
		{"backup.YAML", backup.FormatYAML},
		{"/tmp/x.yml", backup.FormatYAML},
		{"noext", backup.FormatJSON},
	}
	for _, tt := range tests {
		if got := backup.FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if _, err := backup.ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestEncodeEmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := backup.Encode(&buf, model.BackupData{Version: "1.0.0"}, backup.FormatJSON); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"dailyTasks": []`) || !strings.Contains(out, `"projects": []`) {
		t.Errorf("expected empty arrays, got %s", out)
	}
}
