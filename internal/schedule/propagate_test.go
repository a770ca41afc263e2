package schedule

import (
	"testing"
	"time"

	"siteline/internal/domain"
)

func date(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPropagateProjectDates(t *testing.T) {
	// start moves 2024-06-01 -> 2024-06-08: every dated incomplete task
	// shifts +7, completed tasks are excluded.
	tasks := []domain.Task{
		task("t1", "Install tile", "pending", "2024-06-10"),
		task("t2", "Order carpet", "completed", "2024-06-05"),
		task("t3", "Final inspection", "in_progress", "2024-06-20"),
		task("t4", "Unscheduled", "pending", ""),
	}
	shift, proposals := PropagateProjectDates(date("2024-06-01"), date("2024-06-08"), tasks)
	if shift != 7 {
		t.Fatalf("shift = %d, want 7", shift)
	}
	want := map[string]string{
		"t1": "2024-06-17",
		"t3": "2024-06-27",
	}
	if len(proposals) != len(want) {
		t.Fatalf("got %d proposals, want %d: %+v", len(proposals), len(want), proposals)
	}
	for _, p := range proposals {
		if want[p.TaskID] != p.NewDueDate {
			t.Errorf("proposal %s = %s, want %s", p.TaskID, p.NewDueDate, want[p.TaskID])
		}
	}
}

func TestPropagateNoShiftNoProposals(t *testing.T) {
	tasks := []domain.Task{task("t1", "Install tile", "pending", "2024-06-10")}
	shift, proposals := PropagateProjectDates(date("2024-06-01"), date("2024-06-01"), tasks)
	if shift != 0 || proposals != nil {
		t.Fatalf("expected no-op, got shift=%d proposals=%+v", shift, proposals)
	}
}

func TestPropagateBackwardShift(t *testing.T) {
	tasks := []domain.Task{task("t1", "Install tile", "pending", "2024-06-10")}
	shift, proposals := PropagateProjectDates(date("2024-06-08"), date("2024-06-01"), tasks)
	if shift != -7 {
		t.Fatalf("shift = %d, want -7", shift)
	}
	if len(proposals) != 1 || proposals[0].NewDueDate != "2024-06-03" {
		t.Fatalf("unexpected proposals %+v", proposals)
	}
}

func TestPhaseBandsSplitSpan(t *testing.T) {
	w := BandWeights{Preparation: 40, Execution: 40, Verification: 20}
	bands := PhaseBands(date("2024-06-01"), date("2024-07-01"), w) // 30 days
	if len(bands) != 3 {
		t.Fatalf("got %d bands", len(bands))
	}
	if bands[0].Start != "2024-06-01" || bands[0].End != "2024-06-13" {
		t.Fatalf("preparation band %+v", bands[0])
	}
	if bands[1].Start != "2024-06-13" || bands[1].End != "2024-06-25" {
		t.Fatalf("execution band %+v", bands[1])
	}
	if bands[2].Start != "2024-06-25" || bands[2].End != "2024-07-01" {
		t.Fatalf("verification band %+v", bands[2])
	}
}
