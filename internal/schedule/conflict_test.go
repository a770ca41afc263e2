package schedule

import (
	"testing"
	"time"

	"siteline/internal/domain"
)

func TestWeatherConflictOnDangerAlert(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{task("t1", "Install tile", "pending", "2024-06-18")}
	forecast := []domain.WeatherAlert{
		{Date: "2024-06-18", Severity: "danger", Message: "severe thunderstorms expected"},
		{Date: "2024-06-19", Severity: "warning", Message: "light rain"},
	}
	groups := Build(Inputs{Tasks: tasks, Forecast: forecast, Today: today, Rules: testRules()})
	sub := FindPhase(groups, PhaseExecution).SubTimelines[0]
	if sub.Conflict != ConflictWeather {
		t.Fatalf("conflict = %s, want weather", sub.Conflict)
	}
	if sub.ConflictMessage != "severe thunderstorms expected" {
		t.Fatalf("message = %q", sub.ConflictMessage)
	}
}

func TestWarningSeverityIsNotAConflict(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{task("t1", "Install tile", "pending", "2024-06-18")}
	forecast := []domain.WeatherAlert{{Date: "2024-06-18", Severity: "warning", Message: "light rain"}}
	groups := Build(Inputs{Tasks: tasks, Forecast: forecast, Today: today, Rules: testRules()})
	if sub := FindPhase(groups, PhaseExecution).SubTimelines[0]; sub.Conflict != ConflictNone {
		t.Fatalf("conflict = %s, want none", sub.Conflict)
	}
}

func TestGPSConflictWhenNoCrewOnSite(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: "t1", ProjectID: "proj-1", Title: "Install tile", Priority: "high", Status: "in_progress"},
	}
	crew := []domain.CrewMember{
		{ID: "c1", Name: "Dana", OnSite: false},
		{ID: "c2", Name: "Lee", OnSite: false},
	}
	groups := Build(Inputs{Tasks: tasks, Crew: crew, Today: today, Rules: testRules()})
	sub := FindPhase(groups, PhaseExecution).SubTimelines[0]
	if sub.Conflict != ConflictGPS {
		t.Fatalf("conflict = %s, want gps", sub.Conflict)
	}
}

func TestGPSConflictOnlyForExecutionPhase(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: "t1", ProjectID: "proj-1", Title: "Order tile", Priority: "high", Status: "in_progress"},
	}
	crew := []domain.CrewMember{{ID: "c1", Name: "Dana", OnSite: false}}
	groups := Build(Inputs{Tasks: tasks, Crew: crew, Today: today, Rules: testRules()})
	if sub := FindPhase(groups, PhasePreparation).SubTimelines[0]; sub.Conflict != ConflictNone {
		t.Fatalf("preparation sub-timeline flagged gps conflict")
	}
}

func TestNoGPSConflictWithoutCrewList(t *testing.T) {
	today := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: "t1", ProjectID: "proj-1", Title: "Install tile", Priority: "high", Status: "in_progress"},
	}
	groups := Build(Inputs{Tasks: tasks, Today: today, Rules: testRules()})
	if sub := FindPhase(groups, PhaseExecution).SubTimelines[0]; sub.Conflict != ConflictNone {
		t.Fatalf("gps conflict flagged with no crew list supplied")
	}
}

func TestBothConflicts(t *testing.T) {
	today := time.Date(2024, 6, 18, 8, 0, 0, 0, time.UTC)
	tasks := []domain.Task{task("t1", "Install tile", "in_progress", "2024-06-18")}
	forecast := []domain.WeatherAlert{{Date: "2024-06-18", Severity: "danger", Message: "high winds"}}
	crew := []domain.CrewMember{{ID: "c1", Name: "Dana", OnSite: false}}
	groups := Build(Inputs{Tasks: tasks, Forecast: forecast, Crew: crew, Today: today, Rules: testRules()})
	sub := FindPhase(groups, PhaseExecution).SubTimelines[0]
	if sub.Conflict != ConflictBoth {
		t.Fatalf("conflict = %s, want both", sub.Conflict)
	}
	if sub.ConflictMessage != "high winds" {
		t.Fatalf("message = %q, want the weather alert message", sub.ConflictMessage)
	}
}
