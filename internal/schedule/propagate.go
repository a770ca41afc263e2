package schedule

import (
	"time"

	"siteline/internal/domain"
)

// PropagateProjectDates computes the uniform shift batch triggered by a
// project start date change. prevStart is session-scoped state owned by
// the caller (the previously known start date), never read from a global.
// Returns the shift in whole days and one proposal per dated,
// non-completed task; nil when the shift is zero or no task exists.
func PropagateProjectDates(prevStart, newStart time.Time, tasks []domain.Task) (int, []ShiftProposal) {
	shiftDays := daysBetween(prevStart, newStart)
	if shiftDays == 0 || len(tasks) == 0 {
		return shiftDays, nil
	}
	var proposals []ShiftProposal
	for _, t := range tasks {
		if t.Status == "completed" {
			continue
		}
		due, ok := taskDue(t)
		if !ok {
			continue
		}
		proposals = append(proposals, ShiftProposal{
			TaskID:     t.ID,
			NewDueDate: due.AddDate(0, 0, shiftDays).Format(dateLayout),
			ShiftDays:  shiftDays,
		})
	}
	return shiftDays, proposals
}

// PhaseBand is a derived date band for rendering one phase.
type PhaseBand struct {
	Phase Phase  `json:"phase"`
	Start string `json:"start" format:"date"`
	End   string `json:"end" format:"date"`
}

// BandWeights allocates the project span across phases, in percent.
// Bands are applied sequentially, so preparation occupies the first
// Preparation% of the span and verification the tail.
type BandWeights struct {
	Preparation  int
	Execution    int
	Verification int
}

// PhaseBands splits [start, end] into sequential per-phase date bands.
func PhaseBands(start, end time.Time, w BandWeights) []PhaseBand {
	total := daysBetween(start, end)
	if total < 0 {
		return nil
	}
	prepEnd := day(start).AddDate(0, 0, total*w.Preparation/100)
	execEnd := day(start).AddDate(0, 0, total*(w.Preparation+w.Execution)/100)
	return []PhaseBand{
		{Phase: PhasePreparation, Start: day(start).Format(dateLayout), End: prepEnd.Format(dateLayout)},
		{Phase: PhaseExecution, Start: prepEnd.Format(dateLayout), End: execEnd.Format(dateLayout)},
		{Phase: PhaseVerification, Start: execEnd.Format(dateLayout), End: day(end).Format(dateLayout)},
	}
}
