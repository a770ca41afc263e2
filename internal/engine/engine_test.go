package engine_test

import (
	"context"
	"testing"
	"time"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/migrate"
	"siteline/internal/schedule"
)

type testEnv struct {
	Engine *engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitProject(ctx, "proj-1", "Flooring job", "", "2024-06-01", "2024-07-01", "tester"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func mustCreate(t *testing.T, env testEnv, title, due string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: "proj-1",
		Title:     title,
		DueDate:   due,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}

func setStatus(t *testing.T, env testEnv, id, status string) {
	t.Helper()
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: id, Status: status, ActorID: "tester"}); err != nil {
		t.Fatalf("set %s status %s: %v", id, status, err)
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, "Install tile", "")

	task, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: "in_progress", ActorID: "tester"})
	if err != nil || task.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: "completed", ActorID: "tester"})
	if err != nil || task.Status != "completed" {
		t.Fatalf("to completed: %v", err)
	}
	if task.CompletedAt == nil {
		t.Fatalf("completed task missing completed_at")
	}
	// reopen drops the completion timestamp
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: "pending", ActorID: "tester"})
	if err != nil || task.CompletedAt != nil {
		t.Fatalf("reopen: %v (completed_at %v)", err, task.CompletedAt)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: "done", ActorID: "tester"}); err == nil {
		t.Fatalf("expected transition error for unknown status")
	}
}

func TestTimelineLocksExecutionBehindPreparation(t *testing.T) {
	env := newTestEnv(t)
	a := mustCreate(t, env, "Order tile", "")
	b := mustCreate(t, env, "Measure room", "")
	mustCreate(t, env, "Buy adhesive", "")
	setStatus(t, env, a.ID, "completed")
	setStatus(t, env, b.ID, "completed")

	res, err := env.Engine.Timeline(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	prep := schedule.FindPhase(res.Phases, schedule.PhasePreparation)
	if prep.Progress != 67 {
		t.Fatalf("preparation progress = %d, want 67", prep.Progress)
	}
	exec := schedule.FindPhase(res.Phases, schedule.PhaseExecution)
	if !exec.Locked || exec.LockReason == "" {
		t.Fatalf("execution should be locked with a reason, got %+v", exec)
	}
	if len(res.Bands) != 3 {
		t.Fatalf("expected phase bands from project dates, got %d", len(res.Bands))
	}
}

func TestTimelineRegistersAndConfirmsDelayBatch(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "Install tile", "2024-06-12") // 3 days overdue
	later := mustCreate(t, env, "Install baseboard", "2024-06-20")

	res, err := env.Engine.Timeline(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(res.Pending) != 1 {
		t.Fatalf("expected one pending batch, got %d", len(res.Pending))
	}
	batch := res.Pending[0]
	if batch.Kind != "delay" || len(batch.Proposals) != 1 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if batch.Proposals[0].TaskID != later.ID || batch.Proposals[0].NewDueDate != "2024-06-23" {
		t.Fatalf("unexpected proposal %+v", batch.Proposals[0])
	}

	// nothing moves before confirmation
	fetched, err := env.Engine.Repo.GetTask(env.Ctx, later.ID)
	if err != nil || *fetched.DueDate != "2024-06-20" {
		t.Fatalf("task mutated before confirm: %v %v", err, fetched.DueDate)
	}

	results, err := env.Engine.ConfirmShiftBatch(env.Ctx, batch.ID, "tester")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("unexpected results %+v", results)
	}
	fetched, _ = env.Engine.Repo.GetTask(env.Ctx, later.ID)
	if *fetched.DueDate != "2024-06-23" {
		t.Fatalf("due date = %s, want 2024-06-23", *fetched.DueDate)
	}
	if _, err := env.Engine.ConfirmShiftBatch(env.Ctx, batch.ID, "tester"); err == nil {
		t.Fatalf("confirming a consumed batch should fail")
	}
}

func TestConfirmReportsPerTaskFailures(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "Install tile", "2024-06-12")
	doomed := mustCreate(t, env, "Install baseboard", "2024-06-20")
	keeper := mustCreate(t, env, "Install quarter round", "2024-06-21")

	res, err := env.Engine.Timeline(env.Ctx, "proj-1")
	if err != nil || len(res.Pending) != 1 {
		t.Fatalf("timeline: %v pending=%d", err, len(res.Pending))
	}
	if err := env.Engine.Repo.DeleteTask(env.Ctx, doomed.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	results, err := env.Engine.ConfirmShiftBatch(env.Ctx, res.Pending[0].ID, "tester")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	var okCount, failCount int
	for _, r := range results {
		if r.OK {
			okCount++
		} else {
			failCount++
		}
	}
	if okCount != 1 || failCount != 1 {
		t.Fatalf("expected one success and one failure, got %+v", results)
	}
	fetched, _ := env.Engine.Repo.GetTask(env.Ctx, keeper.ID)
	if *fetched.DueDate != "2024-06-24" {
		t.Fatalf("surviving task not shifted: %s", *fetched.DueDate)
	}
}

func TestDismissBatchHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "Install tile", "2024-06-12")
	later := mustCreate(t, env, "Install baseboard", "2024-06-20")

	res, _ := env.Engine.Timeline(env.Ctx, "proj-1")
	if len(res.Pending) != 1 {
		t.Fatalf("expected pending batch")
	}
	if err := env.Engine.DismissShiftBatch(res.Pending[0].ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := env.Engine.DismissShiftBatch(res.Pending[0].ID); err == nil {
		t.Fatalf("double dismiss should fail")
	}
	fetched, _ := env.Engine.Repo.GetTask(env.Ctx, later.ID)
	if *fetched.DueDate != "2024-06-20" {
		t.Fatalf("dismiss mutated a task")
	}
}

func TestProjectDateChangePropagates(t *testing.T) {
	env := newTestEnv(t)
	open := mustCreate(t, env, "Install tile", "2024-06-10")
	done := mustCreate(t, env, "Order carpet", "2024-06-05")
	setStatus(t, env, done.ID, "completed")

	start := "2024-06-08"
	_, batch, err := env.Engine.UpdateProjectDates(env.Ctx, "proj-1", &start, nil, "tester")
	if err != nil {
		t.Fatalf("update dates: %v", err)
	}
	if batch == nil || batch.Kind != "project_dates" {
		t.Fatalf("expected propagation batch, got %+v", batch)
	}
	if len(batch.Proposals) != 1 {
		t.Fatalf("completed task should be excluded, got %+v", batch.Proposals)
	}
	p := batch.Proposals[0]
	if p.TaskID != open.ID || p.NewDueDate != "2024-06-17" || p.ShiftDays != 7 {
		t.Fatalf("unexpected proposal %+v", p)
	}

	results, err := env.Engine.ConfirmShiftBatch(env.Ctx, batch.ID, "tester")
	if err != nil || len(results) != 1 || !results[0].OK {
		t.Fatalf("confirm: %v %+v", err, results)
	}
	fetched, _ := env.Engine.Repo.GetTask(env.Ctx, open.ID)
	if *fetched.DueDate != "2024-06-17" {
		t.Fatalf("due date = %s, want 2024-06-17", *fetched.DueDate)
	}
}

func TestProjectDateChangeWithoutShiftYieldsNoBatch(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "Install tile", "2024-06-10")
	start := "2024-06-01" // unchanged
	_, batch, err := env.Engine.UpdateProjectDates(env.Ctx, "proj-1", &start, nil, "tester")
	if err != nil {
		t.Fatalf("update dates: %v", err)
	}
	if batch != nil {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestRescheduleByPixels(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, "Install tile", "2024-06-20")

	px := 95.0
	got, moved, err := env.Engine.Reschedule(env.Ctx, engine.RescheduleOptions{
		TaskID: task.ID, PixelDelta: &px, DayWidth: 40, ActorID: "tester",
	})
	if err != nil || !moved {
		t.Fatalf("reschedule: %v moved=%v", err, moved)
	}
	if *got.DueDate != "2024-06-22" {
		t.Fatalf("due date = %s, want 2024-06-22", *got.DueDate)
	}
}

func TestRescheduleZeroDeltaIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, "Install tile", "2024-06-20")

	px := 10.0 // under half a day at width 40
	got, moved, err := env.Engine.Reschedule(env.Ctx, engine.RescheduleOptions{
		TaskID: task.ID, PixelDelta: &px, DayWidth: 40, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved {
		t.Fatalf("zero day delta must not persist")
	}
	if *got.DueDate != "2024-06-20" {
		t.Fatalf("due date changed on no-op")
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "proj-1", "task.rescheduled", "", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 0 {
		t.Fatalf("no-op reschedule wrote an event")
	}
}

func TestRescheduleByCalendarDrop(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, "Install tile", "2024-06-20")
	got, moved, err := env.Engine.Reschedule(env.Ctx, engine.RescheduleOptions{
		TaskID: task.ID, TargetDate: "2024-06-25", ActorID: "tester",
	})
	if err != nil || !moved || *got.DueDate != "2024-06-25" {
		t.Fatalf("drop reschedule: %v moved=%v due=%v", err, moved, got.DueDate)
	}
}

func TestBulkCompleteRejectedWhenLocked(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "Order tile", "")     // preparation, pending
	mustCreate(t, env, "Install tile", "")   // execution
	_, err := env.Engine.BulkComplete(env.Ctx, "proj-1", schedule.PhaseExecution, "", true, "tester")
	if err == nil {
		t.Fatalf("expected lock rejection")
	}
}

func TestBulkCompleteTogglesPhase(t *testing.T) {
	env := newTestEnv(t)
	a := mustCreate(t, env, "Order tile", "")
	b := mustCreate(t, env, "Measure room", "")

	changes, err := env.Engine.BulkComplete(env.Ctx, "proj-1", schedule.PhasePreparation, "", true, "tester")
	if err != nil {
		t.Fatalf("bulk complete: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected two status changes, got %+v", changes)
	}
	for _, id := range []string{a.ID, b.ID} {
		task, _ := env.Engine.Repo.GetTask(env.Ctx, id)
		if task.Status != "completed" {
			t.Fatalf("task %s = %s, want completed", id, task.Status)
		}
	}
}

func TestTimelineConflictsFromImports(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, "Install tile", "2024-06-18")
	if err := env.Engine.ImportForecast(env.Ctx, "proj-1", []domain.WeatherAlert{
		{Date: "2024-06-18", Severity: "danger", Message: "lightning risk"},
	}, "tester"); err != nil {
		t.Fatalf("import forecast: %v", err)
	}
	res, err := env.Engine.Timeline(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	exec := schedule.FindPhase(res.Phases, schedule.PhaseExecution)
	sub := exec.SubTimelines[0]
	if sub.Conflict != schedule.ConflictWeather || sub.ConflictMessage != "lightning risk" {
		t.Fatalf("conflict = %s %q", sub.Conflict, sub.ConflictMessage)
	}
}
