// Package worklog joins the task collection into daily summaries and guards
// the invariants the store itself does not enforce: one summary per date,
// unique task descriptions per date and the project cascade.
package worklog

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Tiliavir/worklog/internal/logging"
	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/storage"
)

// Service is the reconciliation layer over an initialized store.
type Service struct {
	store   *storage.Store
	log     *zap.Logger
	cascade func(ctx context.Context, h storage.Handle, projectID string) (int64, error)
}

// New returns a Service using store.
func New(store *storage.Store, log *zap.Logger) *Service {
	return &Service{
		store:   store,
		log:     logging.OrNop(log).Named("worklog"),
		cascade: cascadeProject,
	}
}

// NewDailyTask assembles a summary for date from tasks. Tasks without an id
// get one, every task is moved to date, and only the projects referenced by
// at least one task are kept.
func NewDailyTask(date string, tasks []model.Task, projects []model.Project) model.DailyTask {
	dt := model.DailyTask{
		ID:       model.NewID(),
		Date:     date,
		Projects: []model.Project{},
		Tasks:    make([]model.Task, 0, len(tasks)),
	}
	used := map[string]bool{}
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = model.NewID()
		}
		t.Date = date
		used[t.ProjectID] = true
		dt.Tasks = append(dt.Tasks, t)
	}
	for _, p := range projects {
		if used[p.ID] {
			dt.Projects = append(dt.Projects, p)
		}
	}
	return dt
}

// GetDailyTask returns the summary for date with its live tasks, or nil if
// no summary exists.
func (s *Service) GetDailyTask(ctx context.Context, date string) (*model.DailyTask, error) {
	return s.dailyTask(ctx, s.store, date)
}

func (s *Service) dailyTask(ctx context.Context, h storage.Handle, date string) (*model.DailyTask, error) {
	summaries, err := storage.GetByIndex[model.DailyTask](ctx, h, storage.DailyTasks, "date", date)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}
	if len(summaries) > 1 {
		// Only reachable by writing to the store directly.
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
		s.log.Warn("several entries share a date; using the lowest id",
			zap.String("date", date), zap.Int("count", len(summaries)), zap.String("id", summaries[0].ID))
	}
	dt := summaries[0]

	tasks, err := storage.GetByIndex[model.Task](ctx, h, storage.Tasks, "date", date)
	if err != nil {
		return nil, err
	}
	dt.Tasks = tasks
	if dt.Projects == nil {
		dt.Projects = []model.Project{}
	}
	return &dt, nil
}

// GetAllDailyTasks returns every summary, each with the live tasks of its
// date. The task collection is scanned once.
func (s *Service) GetAllDailyTasks(ctx context.Context) ([]model.DailyTask, error) {
	return s.allDailyTasks(ctx, s.store)
}

func (s *Service) allDailyTasks(ctx context.Context, h storage.Handle) ([]model.DailyTask, error) {
	summaries, err := storage.GetAll[model.DailyTask](ctx, h, storage.DailyTasks)
	if err != nil {
		return nil, err
	}
	tasks, err := storage.GetAll[model.Task](ctx, h, storage.Tasks)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]model.Task)
	for _, t := range tasks {
		byDate[t.Date] = append(byDate[t.Date], t)
	}
	for i := range summaries {
		summaries[i].Tasks = byDate[summaries[i].Date]
		if summaries[i].Tasks == nil {
			summaries[i].Tasks = []model.Task{}
		}
		if summaries[i].Projects == nil {
			summaries[i].Projects = []model.Project{}
		}
	}
	return summaries, nil
}

// SaveDailyTask upserts the summary record (id, date, projects). Embedded
// tasks are not written; persist them with SaveTask. A different summary
// already owning the date is rejected with DuplicateDateError.
func (s *Service) SaveDailyTask(ctx context.Context, dt model.DailyTask) error {
	if err := validateSummary(dt); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx *storage.Tx) error {
		existing, err := storage.GetByIndex[model.DailyTask](ctx, tx, storage.DailyTasks, "date", dt.Date)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.ID != dt.ID {
				return &DuplicateDateError{Date: dt.Date}
			}
		}
		return putSummary(ctx, tx, dt)
	})
}

// CreateDailyTask stores a new summary and its tasks. It fails with
// DuplicateDateError if the date already has a summary and with
// DuplicateTaskError if two tasks of the batch share a description.
func (s *Service) CreateDailyTask(ctx context.Context, dt model.DailyTask) error {
	if err := validateSummary(dt); err != nil {
		return err
	}
	for i := range dt.Tasks {
		dt.Tasks[i].Date = dt.Date
		if err := validateTask(dt.Tasks[i]); err != nil {
			return err
		}
	}
	if dups := duplicateDescriptions(nil, dt.Tasks); len(dups) > 0 {
		return &DuplicateTaskError{Date: dt.Date, Descriptions: dups}
	}

	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		existing, err := s.dailyTask(ctx, tx, dt.Date)
		if err != nil {
			return err
		}
		if existing != nil {
			return &DuplicateDateError{Date: dt.Date}
		}
		if err := putSummary(ctx, tx, dt); err != nil {
			return err
		}
		for _, t := range dt.Tasks {
			if err := storage.Put(ctx, tx, storage.Tasks, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("entry created", zap.String("date", dt.Date), zap.Int("tasks", len(dt.Tasks)))
	return nil
}

// AddTasks appends tasks to the existing summary for date. If any new
// description matches a task already logged on date (or another task of the
// batch), case-insensitively, the whole batch is rejected with
// DuplicateTaskError and nothing is written. Projects of the new tasks are
// added to the summary.
func (s *Service) AddTasks(ctx context.Context, date string, tasks []model.Task) (*model.DailyTask, error) {
	if !model.ValidDate(date) {
		return nil, invalid("date %q is not YYYY-MM-DD", date)
	}
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = model.NewID()
		}
		tasks[i].Date = date
		if err := validateTask(tasks[i]); err != nil {
			return nil, err
		}
	}

	var updated *model.DailyTask
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		dt, err := s.dailyTask(ctx, tx, date)
		if err != nil {
			return err
		}
		if dt == nil {
			return ErrDailyTaskNotFound
		}
		if dups := duplicateDescriptions(dt.Tasks, tasks); len(dups) > 0 {
			return &DuplicateTaskError{Date: date, Descriptions: dups}
		}

		for _, t := range tasks {
			if !hasProject(dt.Projects, t.ProjectID) {
				p, found, err := storage.Get[model.Project](ctx, tx, storage.Projects, t.ProjectID)
				if err != nil {
					return err
				}
				if !found {
					return ErrProjectNotFound
				}
				dt.Projects = append(dt.Projects, p)
			}
			if err := storage.Put(ctx, tx, storage.Tasks, t); err != nil {
				return err
			}
			dt.Tasks = append(dt.Tasks, t)
		}
		if err := putSummary(ctx, tx, *dt); err != nil {
			return err
		}
		updated = dt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// LogTasks records each description as a task of the project called
// projectName on date. The project and the day's summary are created when
// missing. Everything is written in one transaction, so a batch rejected with
// DuplicateTaskError leaves no new project or summary behind. A non-nil hours
// becomes the project's hours for the day.
func (s *Service) LogTasks(ctx context.Context, date, projectName string, descriptions []string, hours *float64) (*model.DailyTask, model.Project, error) {
	if !model.ValidDate(date) {
		return nil, model.Project{}, invalid("date %q is not YYYY-MM-DD", date)
	}
	if len(descriptions) == 0 {
		return nil, model.Project{}, invalid("no tasks given")
	}
	if hours != nil && *hours < 0 {
		return nil, model.Project{}, invalid("hours must not be negative")
	}

	var (
		logged  *model.DailyTask
		project model.Project
	)
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		p, err := s.ensureProject(ctx, tx, projectName)
		if err != nil {
			return err
		}
		tasks := make([]model.Task, 0, len(descriptions))
		for _, d := range descriptions {
			t := model.Task{ID: model.NewID(), Description: strings.TrimSpace(d), ProjectID: p.ID, Date: date}
			if err := validateTask(t); err != nil {
				return err
			}
			tasks = append(tasks, t)
		}

		dt, err := s.dailyTask(ctx, tx, date)
		if err != nil {
			return err
		}
		if dt == nil {
			// Tasks may outlive their summary (DeleteDailyTask).
			kept, err := storage.GetByIndex[model.Task](ctx, tx, storage.Tasks, "date", date)
			if err != nil {
				return err
			}
			created := NewDailyTask(date, nil, nil)
			created.Tasks = kept
			dt = &created
		}
		if dups := duplicateDescriptions(dt.Tasks, tasks); len(dups) > 0 {
			return &DuplicateTaskError{Date: date, Descriptions: dups}
		}

		idx := -1
		for i := range dt.Projects {
			if dt.Projects[i].ID == p.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			dt.Projects = append(dt.Projects, p)
			idx = len(dt.Projects) - 1
		}
		if hours != nil {
			dt.Projects[idx].HoursSpent = model.Float(*hours)
		}

		for _, t := range tasks {
			if err := storage.Put(ctx, tx, storage.Tasks, t); err != nil {
				return err
			}
			dt.Tasks = append(dt.Tasks, t)
		}
		if err := putSummary(ctx, tx, *dt); err != nil {
			return err
		}
		logged, project = dt, p
		return nil
	})
	if err != nil {
		return nil, model.Project{}, err
	}
	s.log.Info("tasks logged", zap.String("date", date), zap.String("project", project.Name), zap.Int("tasks", len(descriptions)))
	return logged, project, nil
}

// DeleteDailyTask removes a summary record by id. Its tasks are untouched.
func (s *Service) DeleteDailyTask(ctx context.Context, id string) error {
	return storage.Delete(ctx, s.store, storage.DailyTasks, id)
}

// DeleteDay removes every summary and every task of date.
func (s *Service) DeleteDay(ctx context.Context, date string) error {
	return s.store.WithTx(ctx, func(tx *storage.Tx) error {
		n, err := storage.DeleteByIndex(ctx, tx, storage.DailyTasks, "date", date)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrDailyTaskNotFound
		}
		_, err = storage.DeleteByIndex(ctx, tx, storage.Tasks, "date", date)
		return err
	})
}

// SetProjectHours records hours spent on a project for one date, on the
// summary's copy of the project.
func (s *Service) SetProjectHours(ctx context.Context, date, projectID string, hours float64) error {
	if hours < 0 {
		return invalid("hours must not be negative")
	}
	return s.store.WithTx(ctx, func(tx *storage.Tx) error {
		dt, err := s.dailyTask(ctx, tx, date)
		if err != nil {
			return err
		}
		if dt == nil {
			return ErrDailyTaskNotFound
		}
		idx := -1
		for i, p := range dt.Projects {
			if p.ID == projectID {
				idx = i
				break
			}
		}
		if idx < 0 {
			p, found, err := storage.Get[model.Project](ctx, tx, storage.Projects, projectID)
			if err != nil {
				return err
			}
			if !found {
				return ErrProjectNotFound
			}
			dt.Projects = append(dt.Projects, p)
			idx = len(dt.Projects) - 1
		}
		dt.Projects[idx].HoursSpent = model.Float(hours)
		return putSummary(ctx, tx, *dt)
	})
}

// putSummary writes a summary without its embedded tasks; tasks are always
// read back from the task collection.
func putSummary(ctx context.Context, h storage.Handle, dt model.DailyTask) error {
	dt.Tasks = nil
	if dt.Projects == nil {
		dt.Projects = []model.Project{}
	}
	return storage.Put(ctx, h, storage.DailyTasks, dt)
}

func validateSummary(dt model.DailyTask) error {
	if dt.ID == "" {
		return invalid("entry id is empty")
	}
	if !model.ValidDate(dt.Date) {
		return invalid("date %q is not YYYY-MM-DD", dt.Date)
	}
	return nil
}

func validateTask(t model.Task) error {
	if t.ID == "" {
		return invalid("task id is empty")
	}
	if strings.TrimSpace(t.Description) == "" {
		return invalid("task description is empty")
	}
	if t.ProjectID == "" {
		return invalid("task %q has no project", t.Description)
	}
	if !model.ValidDate(t.Date) {
		return invalid("task %q: date %q is not YYYY-MM-DD", t.Description, t.Date)
	}
	return nil
}

func normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// duplicateDescriptions returns the descriptions of incoming that collide
// with existing or with an earlier task of incoming.
func duplicateDescriptions(existing, incoming []model.Task) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, t := range existing {
		seen[normalize(t.Description)] = true
	}
	var dups []string
	for _, t := range incoming {
		key := normalize(t.Description)
		if seen[key] {
			dups = append(dups, t.Description)
			continue
		}
		seen[key] = true
	}
	return dups
}

func hasProject(projects []model.Project, id string) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
