package worklog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/storage"
)

// SaveProject inserts or replaces a project record.
func (s *Service) SaveProject(ctx context.Context, p model.Project) error {
	if p.ID == "" {
		return invalid("project id is empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("project name is empty")
	}
	return storage.Put(ctx, s.store, storage.Projects, p)
}

// GetAllProjects returns every project in creation order.
func (s *Service) GetAllProjects(ctx context.Context) ([]model.Project, error) {
	return storage.GetAll[model.Project](ctx, s.store, storage.Projects)
}

// GetProject returns the project with id or ErrProjectNotFound.
func (s *Service) GetProject(ctx context.Context, id string) (model.Project, error) {
	p, found, err := storage.Get[model.Project](ctx, s.store, storage.Projects, id)
	if err != nil {
		return model.Project{}, err
	}
	if !found {
		return model.Project{}, ErrProjectNotFound
	}
	return p, nil
}

// FindProjectByName looks a project up by name, ignoring case. It returns
// nil when there is none.
func (s *Service) FindProjectByName(ctx context.Context, name string) (*model.Project, error) {
	return findProject(ctx, s.store, name)
}

func findProject(ctx context.Context, h storage.Handle, name string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	exact, err := storage.GetByIndex[model.Project](ctx, h, storage.Projects, "name", name)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return &exact[0], nil
	}
	all, err := storage.GetAll[model.Project](ctx, h, storage.Projects)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, name) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// EnsureProject returns the project called name, creating it when it does
// not exist yet.
func (s *Service) EnsureProject(ctx context.Context, name string) (model.Project, error) {
	var p model.Project
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		p, err = s.ensureProject(ctx, tx, name)
		return err
	})
	return p, err
}

func (s *Service) ensureProject(ctx context.Context, h storage.Handle, name string) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, invalid("project name is empty")
	}
	existing, err := findProject(ctx, h, name)
	if err != nil {
		return model.Project{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	p := model.Project{ID: model.NewID(), Name: name}
	if err := storage.Put(ctx, h, storage.Projects, p); err != nil {
		return model.Project{}, err
	}
	s.log.Info("project created", zap.String("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// RenameProject renames a project and the copies held by daily summaries.
func (s *Service) RenameProject(ctx context.Context, id, name string) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, invalid("project name is empty")
	}
	var p model.Project
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var found bool
		var err error
		p, found, err = storage.Get[model.Project](ctx, tx, storage.Projects, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrProjectNotFound
		}
		p.Name = name
		if err := storage.Put(ctx, tx, storage.Projects, p); err != nil {
			return err
		}
		return updateSummaryCopies(ctx, tx, id, func(c *model.Project) { c.Name = name })
	})
	return p, err
}

// DeleteProject removes a project and then every task referencing it.
//
// The two steps are not atomic. When the second one fails the project is
// already gone, tasks pointing at it may remain, and a *CascadeError is
// returned. Callers surface it; nothing retries.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := storage.Delete(ctx, s.store, storage.Projects, id); err != nil {
		return err
	}

	var removed int64
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		removed, err = s.cascade(ctx, tx, id)
		return err
	})
	if err != nil {
		s.log.Error("project deleted but cascade failed; tasks may be orphaned",
			zap.String("project", id), zap.Error(err))
		return &CascadeError{ProjectID: id, Err: err}
	}
	s.log.Info("project deleted", zap.String("project", id), zap.Int64("tasks_removed", removed))
	return nil
}

// cascadeProject deletes the tasks of a project and drops the project from
// every daily summary.
func cascadeProject(ctx context.Context, h storage.Handle, projectID string) (int64, error) {
	removed, err := storage.DeleteByIndex(ctx, h, storage.Tasks, "projectId", projectID)
	if err != nil {
		return 0, err
	}
	return removed, removeFromSummaries(ctx, h, projectID)
}

func updateSummaryCopies(ctx context.Context, h storage.Handle, projectID string, update func(*model.Project)) error {
	summaries, err := storage.GetAll[model.DailyTask](ctx, h, storage.DailyTasks)
	if err != nil {
		return err
	}
	for _, dt := range summaries {
		changed := false
		for i := range dt.Projects {
			if dt.Projects[i].ID == projectID {
				update(&dt.Projects[i])
				changed = true
			}
		}
		if changed {
			if err := putSummary(ctx, h, dt); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeFromSummaries(ctx context.Context, h storage.Handle, projectID string) error {
	summaries, err := storage.GetAll[model.DailyTask](ctx, h, storage.DailyTasks)
	if err != nil {
		return err
	}
	for _, dt := range summaries {
		kept := dt.Projects[:0]
		for _, p := range dt.Projects {
			if p.ID != projectID {
				kept = append(kept, p)
			}
		}
		if len(kept) != len(dt.Projects) {
			dt.Projects = kept
			if err := putSummary(ctx, h, dt); err != nil {
				return err
			}
		}
	}
	return nil
}
