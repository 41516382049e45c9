package worklog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDailyTaskNotFound = errors.New("no entry for this date")
	ErrTaskNotFound      = errors.New("task not found")
	ErrProjectNotFound   = errors.New("project not found")
	// ErrInvalid wraps every validation failure of caller-supplied records.
	ErrInvalid = errors.New("invalid record")
)

// DuplicateDateError rejects a second summary for a date that already has one.
type DuplicateDateError struct {
	Date string
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("an entry for %s already exists; add tasks to it instead", e.Date)
}

// DuplicateTaskError rejects a batch of tasks when any description is already
// logged for the date, compared case-insensitively.
type DuplicateTaskError struct {
	Date         string
	Descriptions []string
}

func (e *DuplicateTaskError) Error() string {
	quoted := make([]string, len(e.Descriptions))
	for i, d := range e.Descriptions {
		quoted[i] = fmt.Sprintf("%q", d)
	}
	return fmt.Sprintf("already logged on %s: %s", e.Date, strings.Join(quoted, ", "))
}

// CascadeError means a project was deleted but removing its tasks failed.
// The project is gone and tasks referencing it may remain; this partial
// state is accepted and reported, never repaired automatically.
type CascadeError struct {
	ProjectID string
	Err       error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("project %s deleted but its tasks could not be removed: %v", e.ProjectID, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
