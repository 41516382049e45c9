package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used for every Date field.
const DateLayout = "2006-01-02"

// Task is one unit of logged work.
type Task struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Description string `json:"description" yaml:"description" validate:"required"`
	ProjectID   string `json:"projectId" yaml:"projectId" validate:"required"`
	Date        string `json:"date" yaml:"date" validate:"omitempty,isodate"`
	Completed   bool   `json:"completed" yaml:"completed"`
}

// Project is a named section tasks are grouped under.
type Project struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required"`
	// HoursSpent is entered by the user; it is never derived from tasks.
	HoursSpent *float64 `json:"hoursSpent,omitempty" yaml:"hoursSpent,omitempty" validate:"omitempty,gte=0"`
}

// DailyTask is the summary of one calendar date. Tasks is a projection of the
// task collection and is recomputed on every read.
type DailyTask struct {
	ID       string    `json:"id" yaml:"id" validate:"required"`
	Date     string    `json:"date" yaml:"date" validate:"required,isodate"`
	Projects []Project `json:"projects" yaml:"projects" validate:"dive"`
	Tasks    []Task    `json:"tasks" yaml:"tasks" validate:"dive"`
}

// BackupData is a complete snapshot of the store.
type BackupData struct {
	DailyTasks []DailyTask `json:"dailyTasks" yaml:"dailyTasks" validate:"dive"`
	Projects   []Project   `json:"projects" yaml:"projects" validate:"dive"`
	Version    string      `json:"version" yaml:"version"`
	Timestamp  string      `json:"timestamp" yaml:"timestamp"`
}

// NewID returns a fresh random record identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidDate reports whether s is a calendar date in DateLayout.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

// Hours returns the project's hours or zero when unset.
func (p Project) Hours() float64 {
	if p.HoursSpent == nil {
		return 0
	}
	return *p.HoursSpent
}

// Float returns a pointer to v, for optional fields such as HoursSpent.
func Float(v float64) *float64 {
	return &v
}
