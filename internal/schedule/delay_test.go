package schedule

import (
	"testing"
	"time"

	"siteline/internal/domain"
)

func TestDelayFlaggedOnOverdueTask(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		task("t1", "Install tile", "pending", "2024-06-12"), // 3 days late
		task("t2", "Install carpet", "pending", "2024-06-20"),
		task("t3", "Install baseboard", "pending", "2024-06-25"),
	}
	groups := Build(Inputs{Tasks: tasks, Today: today, Rules: testRules()})

	exec := FindPhase(groups, PhaseExecution)
	var flooring *SubTimeline
	for _, sub := range exec.SubTimelines {
		if sub.Category == "flooring" {
			flooring = sub
		}
	}
	if flooring == nil {
		t.Fatalf("missing flooring sub-timeline")
	}
	if !flooring.Delayed || flooring.DelayDays != 3 {
		t.Fatalf("flooring delayed=%v days=%d, want true/3", flooring.Delayed, flooring.DelayDays)
	}

	proposals := AutoShiftProposals(groups, tasks, today)
	want := map[string]string{
		"t2": "2024-06-23",
		"t3": "2024-06-28",
	}
	if len(proposals) != len(want) {
		t.Fatalf("got %d proposals, want %d: %+v", len(proposals), len(want), proposals)
	}
	for _, p := range proposals {
		if p.ShiftDays != 3 {
			t.Errorf("proposal %s shift=%d, want 3", p.TaskID, p.ShiftDays)
		}
		if want[p.TaskID] != p.NewDueDate {
			t.Errorf("proposal %s date=%s, want %s", p.TaskID, p.NewDueDate, want[p.TaskID])
		}
	}
}

func TestTaskDueTodayIsNotDelayed(t *testing.T) {
	today := time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC)
	tasks := []domain.Task{task("t1", "Install tile", "pending", "2024-06-15")}
	groups := Build(Inputs{Tasks: tasks, Today: today, Rules: testRules()})
	sub := FindPhase(groups, PhaseExecution).SubTimelines[0]
	if sub.Delayed || sub.DelayDays != 0 {
		t.Fatalf("task due today flagged delayed (%d days)", sub.DelayDays)
	}
}

func TestCompletedTasksNeverDelay(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{task("t1", "Install tile", "completed", "2024-06-01")}
	groups := Build(Inputs{Tasks: tasks, Today: today, Rules: testRules()})
	sub := FindPhase(groups, PhaseExecution).SubTimelines[0]
	if sub.Delayed {
		t.Fatalf("completed overdue task flagged delayed")
	}
	if got := AutoShiftProposals(groups, tasks, today); got != nil {
		t.Fatalf("expected no proposals, got %+v", got)
	}
}

func TestAutoShiftSkipsCompletedAndEarlierTasks(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		task("late", "Install tile", "pending", "2024-06-13"),
		task("earlier", "Install carpet", "pending", "2024-06-10"),      // also late and not after rep
		task("done", "Install baseboard", "completed", "2024-06-20"),    // completed, skipped
		task("later", "Install quarter round", "pending", "2024-06-18"), // shifted
	}
	groups := Build(Inputs{Tasks: tasks, Today: today, Rules: testRules()})
	proposals := AutoShiftProposals(groups, tasks, today)

	// flooring sub-timeline delay is max(2, 5) = 5 days and its
	// representative is the first delayed flooring task ("late").
	for _, p := range proposals {
		if p.TaskID == "done" {
			t.Fatalf("completed task proposed for shift")
		}
		if p.TaskID == "earlier" {
			t.Fatalf("task due before representative proposed for shift")
		}
	}
}

func TestDelayMagnitudeIsMaxAcrossTasks(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		task("t1", "Install tile", "pending", "2024-06-14"),
		task("t2", "Install carpet", "in_progress", "2024-06-08"),
	}
	groups := Build(Inputs{Tasks: tasks, Today: today, Rules: testRules()})
	sub := FindPhase(groups, PhaseExecution).SubTimelines[0]
	if sub.DelayDays != 7 {
		t.Fatalf("delay days = %d, want 7", sub.DelayDays)
	}
}
