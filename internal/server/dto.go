package server

import (
	"encoding/json"

	"siteline/internal/config"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/schedule"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	EndDate     *string `json:"end_date,omitempty" format:"date"`
}

type UpdateProjectRequest struct {
	Status      string  `json:"status,omitempty" enum:"active,archived"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UpdateProjectDatesRequest struct {
	StartDate *string `json:"start_date,omitempty" format:"date"`
	EndDate   *string `json:"end_date,omitempty" format:"date"`
}

type CreateTaskRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Status      *string `json:"status,omitempty" enum:"pending,in_progress,completed"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
}

type RescheduleRequest struct {
	PixelDelta *float64 `json:"pixel_delta,omitempty"`
	DayWidth   int      `json:"day_width,omitempty"`
	TargetDate string   `json:"target_date,omitempty" format:"date"`
}

type BulkCompleteRequest struct {
	Category string `json:"category,omitempty"`
	Complete *bool  `json:"complete,omitempty"`
}

type AddMaterialRequest struct {
	Label    string  `json:"label"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

type WeatherAlertRequest struct {
	Date     string `json:"date" format:"date"`
	Severity string `json:"severity" enum:"info,warning,danger"`
	Message  string `json:"message"`
}

type CrewMemberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OnSite   bool   `json:"on_site"`
	LastSeen string `json:"last_seen,omitempty" format:"date-time"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type ProjectResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Description string  `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	EndDate     *string `json:"end_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority" enum:"low,medium,high,urgent"`
	Status      string  `json:"status" enum:"pending,in_progress,completed"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type MaterialResponse struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Label     string  `json:"label"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type TimelineResponse struct {
	Phases  []*schedule.PhaseGroup `json:"phases"`
	Bands   []schedule.PhaseBand   `json:"bands,omitempty"`
	Pending []engine.ShiftBatch    `json:"pending_batches"`
}

type ShiftBatchListResponse struct {
	Items []engine.ShiftBatch `json:"items"`
}

type ConfirmShiftResponse struct {
	Results []engine.ShiftResult `json:"results"`
}

type RescheduleResponse struct {
	Task  TaskResponse `json:"task"`
	Moved bool         `json:"moved"`
}

type BulkCompleteResponse struct {
	Changes []engine.StatusChange `json:"changes"`
}

type ProjectConfigResponse struct {
	Project    projectConfigSection    `json:"project"`
	Classifier classifierConfigSection `json:"classifier"`
	Categories []categoryRuleSection   `json:"categories"`
	Phases     phaseConfigSection      `json:"phases"`
}

type categoryRuleSection struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

type projectConfigSection struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type classifierConfigSection struct {
	Preparation  []string `json:"preparation"`
	Verification []string `json:"verification"`
}

type phaseConfigSection struct {
	Preparation  int `json:"preparation"`
	Execution    int `json:"execution"`
	Verification int `json:"verification"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse(p)
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse(t)
}

func materialResponse(m domain.Material) MaterialResponse {
	return MaterialResponse(m)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func configResponse(cfg *config.Config) ProjectConfigResponse {
	return ProjectConfigResponse{
		Project: projectConfigSection{
			ID:   cfg.Project.ID,
			Name: cfg.Project.Name,
		},
		Classifier: classifierConfigSection{
			Preparation:  nonNilSlice(cfg.Classifier.Preparation),
			Verification: nonNilSlice(cfg.Classifier.Verification),
		},
		Categories: mapCategoryRules(cfg.Categories),
		Phases: phaseConfigSection{
			Preparation:  cfg.Phases.Weights.Preparation,
			Execution:    cfg.Phases.Weights.Execution,
			Verification: cfg.Phases.Weights.Verification,
		},
	}
}

func mapCategoryRules(rules []config.CategoryRule) []categoryRuleSection {
	res := make([]categoryRuleSection, 0, len(rules))
	for _, r := range rules {
		res = append(res, categoryRuleSection{Category: r.Category, Keywords: r.Keywords})
	}
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
