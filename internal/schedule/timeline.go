package schedule

import (
	"math"
	"strings"
	"time"

	"siteline/internal/domain"
)

const dateLayout = "2006-01-02"

// Inputs carries everything one Timeline pass consumes. Forecast, Crew
// and Materials are optional; Today must be injected by the caller so the
// pass stays deterministic.
type Inputs struct {
	Tasks     []domain.Task
	Materials []domain.Material
	Forecast  []domain.WeatherAlert
	Crew      []domain.CrewMember
	Today     time.Time
	Rules     Rules
}

// PhaseGroup is one phase of the timeline with its derived attributes.
// Groups are recomputed from scratch on every pass and never mutated in
// place.
type PhaseGroup struct {
	Phase        Phase          `json:"phase"`
	Progress     int            `json:"progress"`
	Locked       bool           `json:"locked"`
	LockReason   string         `json:"lock_reason,omitempty"`
	StartDate    *string        `json:"start_date,omitempty"`
	EndDate      *string        `json:"end_date,omitempty"`
	SubTimelines []*SubTimeline `json:"sub_timelines"`
}

// SubTimeline groups one phase's tasks by material category.
type SubTimeline struct {
	ID              string         `json:"id"`
	Phase           Phase          `json:"phase"`
	Category        string         `json:"category"`
	Tasks           []domain.Task  `json:"tasks"`
	StartDate       *string        `json:"start_date,omitempty"`
	EndDate         *string        `json:"end_date,omitempty"`
	Progress        int            `json:"progress"`
	Delayed         bool           `json:"delayed"`
	DelayDays       int            `json:"delay_days"`
	Conflict        ConflictStatus `json:"conflict"`
	ConflictMessage string         `json:"conflict_message,omitempty"`
}

// Build assembles the phase/sub-timeline tree for one pass: classify and
// categorize every task, derive date spans and progress, then apply
// locks, delay flags and conflict detection. The result always contains
// all three phases in gating order, even when empty.
func Build(in Inputs) []*PhaseGroup {
	groups := make([]*PhaseGroup, 0, len(PhaseOrder))
	byPhase := map[Phase]*PhaseGroup{}
	for _, p := range PhaseOrder {
		g := &PhaseGroup{Phase: p}
		groups = append(groups, g)
		byPhase[p] = g
	}

	subs := map[string]*SubTimeline{}
	var phaseTasks = map[Phase][]domain.Task{}
	for _, t := range in.Tasks {
		desc := ""
		if t.Description != nil {
			desc = *t.Description
		}
		phase := in.Rules.ClassifyPhase(t.Title, desc)
		category := categorizeWithMaterials(in.Rules, t.Title, desc, in.Materials)
		phaseTasks[phase] = append(phaseTasks[phase], t)

		key := string(phase) + "/" + category
		sub, ok := subs[key]
		if !ok {
			sub = &SubTimeline{ID: key, Phase: phase, Category: category}
			subs[key] = sub
			g := byPhase[phase]
			g.SubTimelines = append(g.SubTimelines, sub)
		}
		sub.Tasks = append(sub.Tasks, t)
	}

	for _, g := range groups {
		tasks := phaseTasks[g.Phase]
		g.Progress = progress(tasks)
		g.StartDate, g.EndDate = dateRange(tasks)
		for _, sub := range g.SubTimelines {
			sub.Progress = progress(sub.Tasks)
			sub.StartDate, sub.EndDate = dateRange(sub.Tasks)
			sub.DelayDays = delayDays(sub.Tasks, in.Today)
			sub.Delayed = sub.DelayDays > 0
			sub.Conflict, sub.ConflictMessage = detectConflict(sub, in.Forecast, in.Crew, in.Today)
		}
	}
	applyLocks(groups)
	return groups
}

// categorizeWithMaterials tries the keyword rules first, then falls back
// to the project's material list: a task mentioning a known material
// label inherits that material's category.
func categorizeWithMaterials(r Rules, title, description string, materials []domain.Material) string {
	if c := r.CategorizeTask(title, description); c != CategoryGeneral {
		return c
	}
	text := strings.ToLower(title + " " + description)
	for _, m := range materials {
		label := strings.ToLower(m.Label)
		if label != "" && strings.Contains(text, label) {
			return r.CategorizeMaterial(m.Label)
		}
	}
	return CategoryGeneral
}

// progress is round(completed/total*100), 0 for an empty set.
func progress(tasks []domain.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Status == "completed" {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(tasks)) * 100))
}

// dateRange returns the earliest and latest due date among dated tasks.
// Unscheduled or malformed dates are skipped, never an error.
func dateRange(tasks []domain.Task) (*string, *string) {
	var min, max time.Time
	for _, t := range tasks {
		d, ok := taskDue(t)
		if !ok {
			continue
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	if min.IsZero() {
		return nil, nil
	}
	lo := min.Format(dateLayout)
	hi := max.Format(dateLayout)
	return &lo, &hi
}

func taskDue(t domain.Task) (time.Time, bool) {
	if t.DueDate == nil || *t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(dateLayout, *t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(day(to).Sub(day(from)).Hours() / 24)
}
