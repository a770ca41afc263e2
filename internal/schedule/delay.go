package schedule

import (
	"time"

	"siteline/internal/domain"
)

// ShiftProposal is a pending recommendation to move one task's due date.
// It never mutates anything by itself; confirmation is a separate step.
type ShiftProposal struct {
	TaskID     string `json:"task_id"`
	NewDueDate string `json:"new_due_date" format:"date"`
	ShiftDays  int    `json:"shift_days"`
}

// delayDays is the max whole-day lateness over a sub-timeline's overdue
// incomplete tasks; 0 when nothing is overdue. A task due today is not
// delayed.
func delayDays(tasks []domain.Task, today time.Time) int {
	max := 0
	for _, t := range tasks {
		if t.Status == "completed" {
			continue
		}
		due, ok := taskDue(t)
		if !ok {
			continue
		}
		if d := daysBetween(due, today); d > max {
			max = d
		}
	}
	return max
}

// firstDelayed returns the representative delayed task for a sub-timeline:
// the first overdue incomplete task in iteration order.
func firstDelayed(tasks []domain.Task, today time.Time) (domain.Task, bool) {
	for _, t := range tasks {
		if t.Status == "completed" {
			continue
		}
		due, ok := taskDue(t)
		if !ok {
			continue
		}
		if daysBetween(due, today) > 0 {
			return t, true
		}
	}
	return domain.Task{}, false
}

// AutoShiftProposals scans the built timeline for delayed sub-timelines
// and pools one shift batch: for each delayed sub-timeline, every
// non-completed task in the full set due strictly later than that
// sub-timeline's representative delayed task is proposed forward by the
// sub-timeline's delay magnitude. Duplicate targets across sub-timelines
// are kept as-is.
func AutoShiftProposals(groups []*PhaseGroup, tasks []domain.Task, today time.Time) []ShiftProposal {
	var proposals []ShiftProposal
	for _, g := range groups {
		for _, sub := range g.SubTimelines {
			if !sub.Delayed {
				continue
			}
			rep, ok := firstDelayed(sub.Tasks, today)
			if !ok {
				continue
			}
			repDue, _ := taskDue(rep)
			for _, t := range tasks {
				if t.Status == "completed" || t.ID == rep.ID {
					continue
				}
				due, ok := taskDue(t)
				if !ok || !due.After(repDue) {
					continue
				}
				proposals = append(proposals, ShiftProposal{
					TaskID:     t.ID,
					NewDueDate: due.AddDate(0, 0, sub.DelayDays).Format(dateLayout),
					ShiftDays:  sub.DelayDays,
				})
			}
		}
	}
	return proposals
}
