// Package report filters and sorts daily entries and sums the hours booked
// per project.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/timecalc"
)

// Preset names a date filter.
type Preset string

const (
	All         Preset = "all"
	YearToDate  Preset = "ytd"
	MonthToDate Preset = "mtd"
	WeekToDate  Preset = "wtd"
	Custom      Preset = "custom"
)

// Order is the date sort direction.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// Filter selects entries by date. From and To are YYYY-MM-DD and only used by
// Custom; both bounds are inclusive and either may be empty.
type Filter struct {
	Preset Preset
	From   string
	To     string
}

// ParsePreset accepts the preset names; an empty string means All.
func ParsePreset(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(s)); p {
	case "":
		return All, nil
	case All, YearToDate, MonthToDate, WeekToDate, Custom:
		return p, nil
	}
	return "", fmt.Errorf("unknown filter %q (want all, ytd, mtd, wtd or custom)", s)
}

// ParseOrder accepts asc and desc; an empty string means Descending.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(s)); o {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q (want asc or desc)", s)
}

// Validate checks the custom bounds.
func (f Filter) Validate() error {
	if f.Preset != Custom {
		return nil
	}
	for _, d := range []string{f.From, f.To} {
		if d != "" && !model.ValidDate(d) {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return fmt.Errorf("range start %s is after its end %s", f.From, f.To)
	}
	return nil
}

// Bounds returns the inclusive date range the filter selects relative to now.
// An empty bound is open. The to-date presets have no upper bound, so entries
// logged ahead of today still show up.
func (f Filter) Bounds(now time.Time) (from, to string) {
	switch f.Preset {
	case YearToDate:
		return timecalc.DateString(timecalc.YearStart(now)), ""
	case MonthToDate:
		return timecalc.DateString(timecalc.MonthStart(now)), ""
	case WeekToDate:
		return timecalc.DateString(timecalc.WeekStart(now)), ""
	case Custom:
		return f.From, f.To
	}
	return "", ""
}

// Apply returns the entries inside the filter's bounds, sorted by date.
// The input slice is not modified.
func Apply(entries []model.DailyTask, f Filter, order Order, now time.Time) []model.DailyTask {
	from, to := f.Bounds(now)
	out := make([]model.DailyTask, 0, len(entries))
	for _, dt := range entries {
		// ISO dates order lexically.
		if from != "" && dt.Date < from {
			continue
		}
		if to != "" && dt.Date > to {
			continue
		}
		out = append(out, dt)
	}
	Sort(out, order)
	return out
}

// Sort orders entries by date in place.
func Sort(entries []model.DailyTask, order Order) {
	sort.SliceStable(entries, func(i, j int) bool {
		if order == Ascending {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].Date > entries[j].Date
	})
}

// ProjectHours is the total booked on one project name.
type ProjectHours struct {
	Project string  `json:"project"`
	Hours   float64 `json:"hours"`
}

// Summary is the hours-by-project view of a set of entries.
type Summary struct {
	From     string         `json:"from,omitempty"`
	To       string         `json:"to,omitempty"`
	Entries  int            `json:"entries"`
	Projects []ProjectHours `json:"projects"`
	Total    float64        `json:"total"`
}

// Summarize sums the per-day hours of every project copy on entries, keyed by
// project name. Projects without hours are left out. Projects are sorted by
// name.
func Summarize(entries []model.DailyTask) Summary {
	totals := map[string]float64{}
	for _, dt := range entries {
		for _, p := range dt.Projects {
			if h := p.Hours(); h > 0 {
				totals[p.Name] += h
			}
		}
	}
	s := Summary{Entries: len(entries), Projects: make([]ProjectHours, 0, len(totals))}
	for name, h := range totals {
		s.Projects = append(s.Projects, ProjectHours{Project: name, Hours: h})
		s.Total += h
	}
	sort.Slice(s.Projects, func(i, j int) bool { return s.Projects[i].Project < s.Projects[j].Project })
	return s
}
