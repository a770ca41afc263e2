package schedule

import (
	"testing"
	"time"

	"siteline/internal/config"
	"siteline/internal/domain"
)

func testRules() Rules {
	return RulesFromConfig(config.Default("proj-1"))
}

func strptr(s string) *string { return &s }

func task(id, title, status string, due string) domain.Task {
	t := domain.Task{ID: id, ProjectID: "proj-1", Title: title, Priority: "medium", Status: status}
	if due != "" {
		t.DueDate = &due
	}
	return t
}

var testToday = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func TestClassifyPhaseTotalAndDeterministic(t *testing.T) {
	rules := testRules()
	cases := []struct {
		title string
		want  Phase
	}{
		{"Order Laminate Flooring", PhasePreparation},
		{"Install laminate boards", PhaseExecution},
		{"Final inspection walkthrough", PhaseVerification},
		{"Measure and verify dimensions", PhasePreparation}, // preparation wins over verification
		{"Lay boards row by row", PhaseExecution},
		{"", PhaseExecution},
	}
	for _, c := range cases {
		got := rules.ClassifyPhase(c.title, "")
		if got != c.want {
			t.Errorf("ClassifyPhase(%q) = %s, want %s", c.title, got, c.want)
		}
		if again := rules.ClassifyPhase(c.title, ""); again != got {
			t.Errorf("ClassifyPhase(%q) not deterministic: %s then %s", c.title, got, again)
		}
	}
}

func TestCategorizeMaterial(t *testing.T) {
	rules := testRules()
	cases := []struct {
		label string
		want  string
	}{
		{"Laminate Flooring 12mm", "flooring"},
		{"Vapor Barrier roll", "underlayment"},
		{"Quarter Round 8ft", "trim"},
		{"Tile Adhesive", "flooring"}, // flooring rule evaluated before supplies
		{"Spacers pack", "supplies"},
		{"Mystery item", CategoryOther},
	}
	for _, c := range cases {
		if got := rules.CategorizeMaterial(c.label); got != c.want {
			t.Errorf("CategorizeMaterial(%q) = %s, want %s", c.label, got, c.want)
		}
	}
}

func TestBuildScenarioOrderLaminateFlooring(t *testing.T) {
	tasks := []domain.Task{task("t1", "Order Laminate Flooring", "pending", "")}
	groups := Build(Inputs{Tasks: tasks, Today: testToday, Rules: testRules()})

	prep := FindPhase(groups, PhasePreparation)
	if len(prep.SubTimelines) != 1 {
		t.Fatalf("expected one preparation sub-timeline, got %d", len(prep.SubTimelines))
	}
	sub := prep.SubTimelines[0]
	if sub.Category != "flooring" {
		t.Fatalf("expected flooring category, got %s", sub.Category)
	}
	if exec := FindPhase(groups, PhaseExecution); len(exec.SubTimelines) != 0 {
		t.Fatalf("task leaked into execution phase")
	}
}

func TestBuildProgressAndLocks(t *testing.T) {
	// three preparation tasks, two completed -> 67%, execution locked.
	tasks := []domain.Task{
		task("t1", "Order tile", "completed", ""),
		task("t2", "Measure room", "completed", ""),
		task("t3", "Buy adhesive", "pending", ""),
	}
	groups := Build(Inputs{Tasks: tasks, Today: testToday, Rules: testRules()})

	prep := FindPhase(groups, PhasePreparation)
	if prep.Progress != 67 {
		t.Fatalf("preparation progress = %d, want 67", prep.Progress)
	}
	if prep.Locked {
		t.Fatalf("preparation must never lock")
	}
	exec := FindPhase(groups, PhaseExecution)
	if !exec.Locked {
		t.Fatalf("execution should be locked behind incomplete preparation")
	}
	if exec.LockReason != "preparation phase is 67% complete" {
		t.Fatalf("unexpected lock reason %q", exec.LockReason)
	}
}

func TestBuildUnlocksAtFullProgress(t *testing.T) {
	tasks := []domain.Task{
		task("t1", "Order tile", "completed", ""),
		task("t2", "Install tile", "pending", ""),
	}
	groups := Build(Inputs{Tasks: tasks, Today: testToday, Rules: testRules()})
	if FindPhase(groups, PhaseExecution).Locked {
		t.Fatalf("execution should unlock once preparation hits 100%%")
	}
	if !FindPhase(groups, PhaseVerification).Locked {
		t.Fatalf("verification should stay locked behind incomplete execution")
	}
}

func TestEmptyPhaseProgressIsZero(t *testing.T) {
	groups := Build(Inputs{Today: testToday, Rules: testRules()})
	for _, g := range groups {
		if g.Progress != 0 {
			t.Fatalf("empty %s progress = %d, want 0", g.Phase, g.Progress)
		}
	}
	// empty preparation means 0% < 100, so execution locks.
	if !FindPhase(groups, PhaseExecution).Locked {
		t.Fatalf("execution should lock behind empty preparation")
	}
}

func TestDateRangeSkipsUnscheduled(t *testing.T) {
	tasks := []domain.Task{
		task("t1", "Order tile", "pending", "2024-06-20"),
		task("t2", "Order carpet", "pending", ""),
		task("t3", "Order underlayment padding", "pending", "2024-06-10"),
	}
	groups := Build(Inputs{Tasks: tasks, Today: testToday, Rules: testRules()})
	prep := FindPhase(groups, PhasePreparation)
	if prep.StartDate == nil || *prep.StartDate != "2024-06-10" {
		t.Fatalf("start date = %v, want 2024-06-10", prep.StartDate)
	}
	if prep.EndDate == nil || *prep.EndDate != "2024-06-20" {
		t.Fatalf("end date = %v, want 2024-06-20", prep.EndDate)
	}
}

func TestMaterialListFallbackCategorization(t *testing.T) {
	// A task mentioning a known material label groups with that material
	// even when no category keyword matches directly; unknown text stays
	// in the general sub-timeline.
	materials := []domain.Material{
		{ID: "m1", ProjectID: "proj-1", Label: "RedGard Membrane", Quantity: 2, Unit: "roll"},
	}
	tasks := []domain.Task{
		{ID: "t1", ProjectID: "proj-1", Title: "Apply RedGard Membrane in bathroom", Status: "pending", Priority: "high"},
		{ID: "t2", ProjectID: "proj-1", Title: "Move furniture out", Status: "pending", Priority: "low"},
	}
	groups := Build(Inputs{Tasks: tasks, Materials: materials, Today: testToday, Rules: testRules()})
	exec := FindPhase(groups, PhaseExecution)
	var cats []string
	for _, sub := range exec.SubTimelines {
		cats = append(cats, sub.Category)
	}
	if len(cats) != 2 || cats[0] != CategoryOther || cats[1] != CategoryGeneral {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestRebuildAfterShiftKeepsPhaseAndCategory(t *testing.T) {
	tasks := []domain.Task{
		task("t1", "Order Laminate Flooring", "pending", "2024-06-20"),
	}
	before := Build(Inputs{Tasks: tasks, Today: testToday, Rules: testRules()})

	shifted := tasks[0]
	shifted.DueDate = strptr("2024-06-27")
	after := Build(Inputs{Tasks: []domain.Task{shifted}, Today: testToday, Rules: testRules()})

	b := FindPhase(before, PhasePreparation).SubTimelines[0]
	a := FindPhase(after, PhasePreparation).SubTimelines[0]
	if a.Phase != b.Phase || a.Category != b.Category {
		t.Fatalf("shift moved task from %s/%s to %s/%s", b.Phase, b.Category, a.Phase, a.Category)
	}
}
