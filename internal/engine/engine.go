package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"siteline/internal/config"
	"siteline/internal/domain"
	"siteline/internal/events"
	"siteline/internal/repo"
	"siteline/internal/schedule"
)

const dateLayout = "2006-01-02"

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time

	mu      sync.Mutex
	batches map[string]*ShiftBatch
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	return &Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Now:     time.Now,
		batches: map[string]*ShiftBatch{},
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ShiftBatch is a pending, unconfirmed batch of due-date shift proposals.
// Batches live in session state only: they are never persisted, and
// dismissal is a pure discard.
type ShiftBatch struct {
	ID        string                   `json:"id"`
	ProjectID string                   `json:"project_id"`
	Kind      string                   `json:"kind" enum:"delay,project_dates"`
	Reason    string                   `json:"reason"`
	CreatedAt string                   `json:"created_at" format:"date-time"`
	Proposals []schedule.ShiftProposal `json:"proposals"`
}

// ShiftResult reports one task's outcome when a batch is applied. A batch
// applies as N independent updates, so some can fail while others stick.
type ShiftResult struct {
	TaskID     string `json:"task_id"`
	NewDueDate string `json:"new_due_date,omitempty"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// InitProject creates a project plus its stored config.
func (e *Engine) InitProject(ctx context.Context, projectID, name, description string, startDate, endDate, actorID string) (domain.Project, error) {
	if projectID == "" {
		return domain.Project{}, errors.New("project id is required")
	}
	if err := validateDate(startDate); err != nil {
		return domain.Project{}, fmt.Errorf("start date: %w", err)
	}
	if err := validateDate(endDate); err != nil {
		return domain.Project{}, fmt.Errorf("end date: %w", err)
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          projectID,
		Name:        name,
		Status:      "active",
		Description: description,
		StartDate:   optionalString(startDate),
		EndDate:     optionalString(endDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, p.ID, config.Default(p.ID)); err != nil {
		return domain.Project{}, fmt.Errorf("insert project config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.init", p.ID, "project", p.ID, actorID, events.EventPayload{"status": p.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// projectConfig loads the stored config for a project, falling back to the
// engine's config and then defaults.
func (e *Engine) projectConfig(ctx context.Context, projectID string) *config.Config {
	if cfg, err := e.Repo.GetProjectConfig(ctx, projectID); err == nil {
		return cfg
	}
	if e.Config != nil {
		return e.Config
	}
	return config.Default(projectID)
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Priority    string
	DueDate     string
	AssigneeID  string
	ActorID     string
}

func (e *Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Task{}, errors.New("project is required")
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if err := validatePriority(opts.Priority); err != nil {
		return domain.Task{}, err
	}
	if err := validateDate(opts.DueDate); err != nil {
		return domain.Task{}, fmt.Errorf("due date: %w", err)
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.ProjectID+"|"+opts.Title+"|"+now)).String()
	}
	t := domain.Task{
		ID:          id,
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: optionalString(opts.Description),
		Priority:    opts.Priority,
		Status:      "pending",
		DueDate:     optionalString(opts.DueDate),
		AssigneeID:  optionalString(opts.AssigneeID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "status": t.Status}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions encapsulates allowed updates.
type TaskUpdateOptions struct {
	ID          string
	Title       string
	Description *string
	Priority    string
	Status      string
	Assign      *string
	DueDate     *string // empty string clears the due date
	ActorID     string
}

func (e *Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	original := t
	if opts.Title != "" {
		t.Title = opts.Title
	}
	if opts.Description != nil {
		t.Description = optionalString(*opts.Description)
	}
	if opts.Priority != "" {
		if err := validatePriority(opts.Priority); err != nil {
			return t, err
		}
		t.Priority = opts.Priority
	}
	if opts.Assign != nil {
		t.AssigneeID = optionalString(*opts.Assign)
	}
	if opts.DueDate != nil {
		if err := validateDate(*opts.DueDate); err != nil {
			return t, fmt.Errorf("due date: %w", err)
		}
		t.DueDate = optionalString(*opts.DueDate)
	}
	if opts.Status != "" && opts.Status != t.Status {
		if err := ensureStatusTransition(t.Status, opts.Status); err != nil {
			return t, err
		}
		t.Status = opts.Status
		if opts.Status == "completed" {
			now := e.now().UTC().Format(time.RFC3339)
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{
		"from_status": original.Status,
		"to_status":   t.Status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func ensureStatusTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "in_progress" || newStatus == "completed" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" || newStatus == "pending" {
			return nil
		}
	case "completed":
		// reopening is allowed; it drops a phase's progress and can relock
		// later phases on the next pass.
		if newStatus == "pending" || newStatus == "in_progress" {
			return nil
		}
	}
	return fmt.Errorf("invalid task status transition %s -> %s", oldStatus, newStatus)
}

// TimelineResult is one full scheduling pass: the annotated phase tree,
// the derived phase bands when project dates exist, and any pending shift
// batches for the project.
type TimelineResult struct {
	Phases  []*schedule.PhaseGroup `json:"phases"`
	Bands   []schedule.PhaseBand   `json:"bands,omitempty"`
	Pending []ShiftBatch           `json:"pending_batches,omitempty"`
}

// Timeline recomputes the phase tree from scratch. When a delayed
// sub-timeline produces auto-shift proposals, the pass registers (or
// replaces) the project's pending delay batch; confirmation stays a
// separate explicit step.
func (e *Engine) Timeline(ctx context.Context, projectID string) (TimelineResult, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return TimelineResult{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: projectID})
	if err != nil {
		return TimelineResult{}, err
	}
	materials, err := e.Repo.ListMaterials(ctx, projectID)
	if err != nil {
		return TimelineResult{}, err
	}
	forecast, err := e.Repo.ListForecast(ctx, projectID)
	if err != nil {
		return TimelineResult{}, err
	}
	crew, err := e.Repo.ListCrew(ctx, projectID)
	if err != nil {
		return TimelineResult{}, err
	}
	cfg := e.projectConfig(ctx, projectID)
	today := e.now().UTC()

	groups := schedule.Build(schedule.Inputs{
		Tasks:     tasks,
		Materials: materials,
		Forecast:  forecast,
		Crew:      crew,
		Today:     today,
		Rules:     schedule.RulesFromConfig(cfg),
	})

	res := TimelineResult{Phases: groups}
	if p.StartDate != nil && p.EndDate != nil {
		start, serr := time.Parse(dateLayout, *p.StartDate)
		end, eerr := time.Parse(dateLayout, *p.EndDate)
		if serr == nil && eerr == nil {
			res.Bands = schedule.PhaseBands(start, end, schedule.BandWeights{
				Preparation:  cfg.Phases.Weights.Preparation,
				Execution:    cfg.Phases.Weights.Execution,
				Verification: cfg.Phases.Weights.Verification,
			})
		}
	}

	proposals := schedule.AutoShiftProposals(groups, tasks, today)
	delayID := projectID + ":delay"
	e.mu.Lock()
	if len(proposals) > 0 {
		e.batches[delayID] = &ShiftBatch{
			ID:        delayID,
			ProjectID: projectID,
			Kind:      "delay",
			Reason:    "overdue tasks detected; shift later work to match",
			CreatedAt: e.now().UTC().Format(time.RFC3339),
			Proposals: proposals,
		}
	} else {
		// the task list moved on; a stale delay batch no longer applies.
		delete(e.batches, delayID)
	}
	for _, b := range e.batches {
		if b.ProjectID == projectID {
			res.Pending = append(res.Pending, *b)
		}
	}
	e.mu.Unlock()
	return res, nil
}

// PendingBatches lists unconfirmed shift batches for a project.
func (e *Engine) PendingBatches(projectID string) []ShiftBatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	var res []ShiftBatch
	for _, b := range e.batches {
		if b.ProjectID == projectID {
			res = append(res, *b)
		}
	}
	return res
}

// ConfirmShiftBatch applies a pending batch as N independent task
// updates. Each proposal commits or fails on its own; results are
// reported per task, never collapsed into one batch-wide outcome.
func (e *Engine) ConfirmShiftBatch(ctx context.Context, batchID, actorID string) ([]ShiftResult, error) {
	e.mu.Lock()
	batch, ok := e.batches[batchID]
	if ok {
		delete(e.batches, batchID)
	}
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("shift batch %s not found", batchID)
	}
	results := make([]ShiftResult, 0, len(batch.Proposals))
	for _, p := range batch.Proposals {
		results = append(results, e.applyShift(ctx, batch, p, actorID))
	}
	return results, nil
}

func (e *Engine) applyShift(ctx context.Context, batch *ShiftBatch, p schedule.ShiftProposal, actorID string) ShiftResult {
	res := ShiftResult{TaskID: p.TaskID, NewDueDate: p.NewDueDate}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer tx.Rollback()
	due := p.NewDueDate
	if err := e.Repo.UpdateTaskDueDate(ctx, tx, p.TaskID, &due, e.now().UTC().Format(time.RFC3339)); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := e.Events.Append(ctx, tx, "task.shifted", batch.ProjectID, "task", p.TaskID, actorID, events.EventPayload{
		"batch_id":     batch.ID,
		"batch_kind":   batch.Kind,
		"shift_days":   p.ShiftDays,
		"new_due_date": p.NewDueDate,
	}); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := tx.Commit(); err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

// DismissShiftBatch discards a pending batch. Purely local: no task is
// touched and no event is written.
func (e *Engine) DismissShiftBatch(batchID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.batches[batchID]; !ok {
		return fmt.Errorf("shift batch %s not found", batchID)
	}
	delete(e.batches, batchID)
	return nil
}

// UpdateProjectDates moves the project window. A start-date change
// against the previously stored start produces a propagation batch over
// all dated, non-completed tasks; the batch still needs its own confirm.
// Malformed or missing dates only disable propagation, never the update
// of whatever parses.
func (e *Engine) UpdateProjectDates(ctx context.Context, projectID string, startDate, endDate *string, actorID string) (domain.Project, *ShiftBatch, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return p, nil, err
	}
	if startDate != nil && *startDate != "" {
		if err := validateDate(*startDate); err != nil {
			return p, nil, fmt.Errorf("start date: %w", err)
		}
	}
	if endDate != nil && *endDate != "" {
		if err := validateDate(*endDate); err != nil {
			return p, nil, fmt.Errorf("end date: %w", err)
		}
	}

	var batch *ShiftBatch
	prevStart := p.StartDate
	if startDate != nil && *startDate != "" && prevStart != nil && *prevStart != "" {
		prev, perr := time.Parse(dateLayout, *prevStart)
		next, nerr := time.Parse(dateLayout, *startDate)
		if perr == nil && nerr == nil {
			tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: projectID})
			if err != nil {
				return p, nil, err
			}
			shiftDays, proposals := schedule.PropagateProjectDates(prev, next, tasks)
			if len(proposals) > 0 {
				batch = &ShiftBatch{
					ID:        projectID + ":dates",
					ProjectID: projectID,
					Kind:      "project_dates",
					Reason:    fmt.Sprintf("project start moved %+d days", shiftDays),
					CreatedAt: e.now().UTC().Format(time.RFC3339),
					Proposals: proposals,
				}
			}
		}
	}

	newStart := p.StartDate
	newEnd := p.EndDate
	if startDate != nil {
		newStart = optionalString(*startDate)
	}
	if endDate != nil {
		newEnd = optionalString(*endDate)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, nil, err
	}
	defer tx.Rollback()
	updatedAt := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateProjectDates(ctx, tx, projectID, newStart, newEnd, updatedAt); err != nil {
		return p, nil, err
	}
	if err := e.Events.Append(ctx, tx, "project.dates.updated", projectID, "project", projectID, actorID, events.EventPayload{
		"start_date": deref(newStart),
		"end_date":   deref(newEnd),
	}); err != nil {
		return p, nil, err
	}
	if err := tx.Commit(); err != nil {
		return p, nil, err
	}
	p.StartDate = newStart
	p.EndDate = newEnd
	p.UpdatedAt = updatedAt

	if batch != nil {
		e.mu.Lock()
		e.batches[batch.ID] = batch
		e.mu.Unlock()
	}
	return p, batch, nil
}

// RescheduleOptions maps one drag gesture onto a task. Either PixelDelta
// (bar-chart drag, converted via DayWidth) or TargetDate (calendar drop)
// supplies the offset.
type RescheduleOptions struct {
	TaskID     string
	PixelDelta *float64
	DayWidth   int
	TargetDate string
	ActorID    string
}

// Reschedule converts a drag into a whole-day offset and persists the new
// due date. A zero day offset is a no-op: the task is returned unchanged
// and nothing is written.
func (e *Engine) Reschedule(ctx context.Context, opts RescheduleOptions) (domain.Task, bool, error) {
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return t, false, err
	}
	if t.DueDate == nil || *t.DueDate == "" {
		return t, false, errors.New("task has no due date to reschedule")
	}
	var dayDelta int
	switch {
	case opts.TargetDate != "":
		dayDelta, err = schedule.DropDelta(*t.DueDate, opts.TargetDate)
		if err != nil {
			return t, false, err
		}
	case opts.PixelDelta != nil:
		cfg := e.projectConfig(ctx, t.ProjectID)
		width := opts.DayWidth
		if width <= 0 {
			width = cfg.Reschedule.MinDayWidth
		}
		if width < cfg.Reschedule.MinDayWidth {
			width = cfg.Reschedule.MinDayWidth
		}
		if width > cfg.Reschedule.MaxDayWidth {
			width = cfg.Reschedule.MaxDayWidth
		}
		dayDelta = schedule.DayDelta(*opts.PixelDelta, width)
	default:
		return t, false, errors.New("pixel delta or target date required")
	}
	if dayDelta == 0 {
		return t, false, nil
	}
	newDue, err := schedule.ShiftDueDate(*t.DueDate, dayDelta)
	if err != nil {
		return t, false, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, false, err
	}
	defer tx.Rollback()
	updatedAt := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTaskDueDate(ctx, tx, t.ID, &newDue, updatedAt); err != nil {
		return t, false, err
	}
	if err := e.Events.Append(ctx, tx, "task.rescheduled", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{
		"day_delta":    dayDelta,
		"new_due_date": newDue,
	}); err != nil {
		return t, false, err
	}
	if err := tx.Commit(); err != nil {
		return t, false, err
	}
	t.DueDate = &newDue
	t.UpdatedAt = updatedAt
	return t, true, nil
}

// StatusChange reports one task's outcome in a bulk completion toggle.
type StatusChange struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// BulkComplete toggles completion for every task in a phase, optionally
// narrowed to one category. The toggle is rejected with the lock reason
// when the phase is locked; it never silently no-ops. Updates apply as
// independent writes with per-task results.
func (e *Engine) BulkComplete(ctx context.Context, projectID string, phase schedule.Phase, category string, complete bool, actorID string) ([]StatusChange, error) {
	res, err := e.Timeline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	group := schedule.FindPhase(res.Phases, phase)
	if group == nil {
		return nil, fmt.Errorf("unknown phase %s", phase)
	}
	if group.Locked {
		return nil, fmt.Errorf("phase %s is locked: %s", phase, group.LockReason)
	}
	targetStatus := "completed"
	if !complete {
		targetStatus = "pending"
	}
	var changes []StatusChange
	for _, sub := range group.SubTimelines {
		if category != "" && sub.Category != category {
			continue
		}
		for _, t := range sub.Tasks {
			if t.Status == targetStatus {
				continue
			}
			change := StatusChange{TaskID: t.ID, Status: targetStatus}
			_, err := e.UpdateTask(ctx, TaskUpdateOptions{ID: t.ID, Status: targetStatus, ActorID: actorID})
			if err != nil {
				change.Error = err.Error()
			} else {
				change.OK = true
			}
			changes = append(changes, change)
		}
	}
	return changes, nil
}

// ImportForecast replaces the project's weather table with a fresh
// provider snapshot.
func (e *Engine) ImportForecast(ctx context.Context, projectID string, alerts []domain.WeatherAlert, actorID string) error {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	for i := range alerts {
		if alerts[i].ID == "" {
			alerts[i].ID = uuid.New().String()
		}
		alerts[i].ProjectID = projectID
		if alerts[i].CreatedAt == "" {
			alerts[i].CreatedAt = now
		}
		if err := validateDate(alerts[i].Date); err != nil {
			return fmt.Errorf("alert %d date: %w", i, err)
		}
		if err := validateSeverity(alerts[i].Severity); err != nil {
			return fmt.Errorf("alert %d: %w", i, err)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceForecast(ctx, tx, projectID, alerts); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "forecast.imported", projectID, "forecast", projectID, actorID, events.EventPayload{"count": len(alerts)}); err != nil {
		return err
	}
	return tx.Commit()
}

// ImportCrew upserts crew presence records.
func (e *Engine) ImportCrew(ctx context.Context, projectID string, members []domain.CrewMember, actorID string) error {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, m := range members {
		if m.ID == "" {
			return errors.New("crew member id required")
		}
		m.ProjectID = projectID
		if m.LastSeen == "" {
			m.LastSeen = now
		}
		if err := e.Repo.UpsertCrewMember(ctx, tx, m); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "crew.imported", projectID, "crew", projectID, actorID, events.EventPayload{"count": len(members)}); err != nil {
		return err
	}
	return tx.Commit()
}

// AddMaterial records one material line item for a project.
func (e *Engine) AddMaterial(ctx context.Context, projectID, label string, quantity float64, unit, actorID string) (domain.Material, error) {
	if label == "" {
		return domain.Material{}, errors.New("label is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Material{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	m := domain.Material{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(projectID+"|material|"+label+"|"+now)).String(),
		ProjectID: projectID,
		Label:     label,
		Quantity:  quantity,
		Unit:      unit,
		CreatedAt: now,
	}
	if err := e.Repo.InsertMaterial(ctx, m); err != nil {
		return domain.Material{}, err
	}
	return m, nil
}

// DeleteTask removes a task and records the deletion.
func (e *Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", t.ProjectID, "task", t.ID, actorID, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- helpers ---

func validateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return nil
}

func validatePriority(p string) error {
	switch p {
	case "low", "medium", "high", "urgent":
		return nil
	}
	return fmt.Errorf("invalid priority %q", p)
}

func validateSeverity(s string) error {
	switch s {
	case "info", "warning", "danger":
		return nil
	}
	return fmt.Errorf("invalid severity %q", s)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
