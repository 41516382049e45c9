package worklog

import (
	"context"
	"strings"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/storage"
)

// SaveTask inserts or replaces a task record.
func (s *Service) SaveTask(ctx context.Context, t model.Task) error {
	if err := validateTask(t); err != nil {
		return err
	}
	return storage.Put(ctx, s.store, storage.Tasks, t)
}

// DeleteTask removes a task. Deleting an unknown id is not an error.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return storage.Delete(ctx, s.store, storage.Tasks, id)
}

// GetTask returns the task with id or ErrTaskNotFound.
func (s *Service) GetTask(ctx context.Context, id string) (model.Task, error) {
	t, found, err := storage.Get[model.Task](ctx, s.store, storage.Tasks, id)
	if err != nil {
		return model.Task{}, err
	}
	if !found {
		return model.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// GetTasksByDate returns the live tasks of date.
func (s *Service) GetTasksByDate(ctx context.Context, date string) ([]model.Task, error) {
	return storage.GetByIndex[model.Task](ctx, s.store, storage.Tasks, "date", date)
}

// GetTasksByProject returns every task of a project across all dates.
func (s *Service) GetTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return storage.GetByIndex[model.Task](ctx, s.store, storage.Tasks, "projectId", projectID)
}

// SetTaskCompleted toggles a task's completion flag.
func (s *Service) SetTaskCompleted(ctx context.Context, id string, completed bool) (model.Task, error) {
	var t model.Task
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var found bool
		var err error
		t, found, err = storage.Get[model.Task](ctx, tx, storage.Tasks, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrTaskNotFound
		}
		t.Completed = completed
		return storage.Put(ctx, tx, storage.Tasks, t)
	})
	return t, err
}

// EditTask changes a task's description. The new description must not match
// another task of the same date.
func (s *Service) EditTask(ctx context.Context, id, description string) (model.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return model.Task{}, invalid("task description is empty")
	}
	var t model.Task
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var found bool
		var err error
		t, found, err = storage.Get[model.Task](ctx, tx, storage.Tasks, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrTaskNotFound
		}
		sameDay, err := storage.GetByIndex[model.Task](ctx, tx, storage.Tasks, "date", t.Date)
		if err != nil {
			return err
		}
		for _, other := range sameDay {
			if other.ID != id && normalize(other.Description) == normalize(description) {
				return &DuplicateTaskError{Date: t.Date, Descriptions: []string{description}}
			}
		}
		t.Description = description
		return storage.Put(ctx, tx, storage.Tasks, t)
	})
	return t, err
}
