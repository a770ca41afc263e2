package sitelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Siteline HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	DueDate    string `json:"due_date,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
}

// SubTimeline is one phase/category group on the timeline.
type SubTimeline struct {
	ID              string `json:"id"`
	Phase           string `json:"phase"`
	Category        string `json:"category"`
	Tasks           []Task `json:"tasks"`
	Progress        int    `json:"progress"`
	Delayed         bool   `json:"delayed"`
	DelayDays       int    `json:"delay_days"`
	Conflict        string `json:"conflict"`
	ConflictMessage string `json:"conflict_message,omitempty"`
}

// PhaseGroup is one phase of the timeline.
type PhaseGroup struct {
	Phase        string        `json:"phase"`
	Progress     int           `json:"progress"`
	Locked       bool          `json:"locked"`
	LockReason   string        `json:"lock_reason,omitempty"`
	SubTimelines []SubTimeline `json:"sub_timelines"`
}

// ShiftProposal moves one task to a new due date.
type ShiftProposal struct {
	TaskID     string `json:"task_id"`
	NewDueDate string `json:"new_due_date"`
	ShiftDays  int    `json:"shift_days"`
}

// ShiftBatch is a pending group of proposals awaiting confirmation.
type ShiftBatch struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Kind      string          `json:"kind"`
	Reason    string          `json:"reason"`
	Proposals []ShiftProposal `json:"proposals"`
}

// ShiftResult reports one task's outcome when a batch is applied.
type ShiftResult struct {
	TaskID     string `json:"task_id"`
	NewDueDate string `json:"new_due_date,omitempty"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// Timeline is the full phase tree plus pending shift batches.
type Timeline struct {
	Phases  []PhaseGroup `json:"phases"`
	Pending []ShiftBatch `json:"pending_batches,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// WeatherAlert is one forecast entry.
type WeatherAlert struct {
	Date     string `json:"date"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CrewMember is one crew presence record.
type CrewMember struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OnSite   bool   `json:"on_site"`
	LastSeen string `json:"last_seen"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, dueDate string) (Task, error) {
	body := map[string]any{"title": title}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), body, &resp)
	return resp, err
}

// UpdateTaskStatus moves a task through its status flow.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	var resp Task
	endpoint := c.projectPath(fmt.Sprintf("tasks/%s", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// Reschedule drops a task on a new date, or converts a pixel drag when
// target is empty and pixelDelta/dayWidth are set.
func (c *Client) Reschedule(ctx context.Context, taskID, targetDate string, pixelDelta float64, dayWidth int) (Task, bool, error) {
	body := map[string]any{}
	if targetDate != "" {
		body["target_date"] = targetDate
	} else {
		body["pixel_delta"] = pixelDelta
		body["day_width"] = dayWidth
	}
	var resp struct {
		Task  Task `json:"task"`
		Moved bool `json:"moved"`
	}
	endpoint := c.projectPath(fmt.Sprintf("tasks/%s/reschedule", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp.Task, resp.Moved, err
}

// Timeline returns the computed phase tree.
func (c *Client) Timeline(ctx context.Context) (Timeline, error) {
	var resp Timeline
	err := c.do(ctx, http.MethodGet, c.projectPath("timeline"), nil, &resp)
	return resp, err
}

// PendingShifts lists shift batches awaiting confirmation.
func (c *Client) PendingShifts(ctx context.Context) ([]ShiftBatch, error) {
	var resp struct {
		Items []ShiftBatch `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.projectPath("shifts"), nil, &resp)
	return resp.Items, err
}

// ConfirmShift applies a pending batch and reports per-task results.
func (c *Client) ConfirmShift(ctx context.Context, batchID string) ([]ShiftResult, error) {
	var resp struct {
		Results []ShiftResult `json:"results"`
	}
	endpoint := c.projectPath(fmt.Sprintf("shifts/%s/confirm", url.PathEscape(batchID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.Results, err
}

// DismissShift discards a pending batch.
func (c *Client) DismissShift(ctx context.Context, batchID string) error {
	endpoint := c.projectPath(fmt.Sprintf("shifts/%s/dismiss", url.PathEscape(batchID)))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// ImportForecast replaces the stored forecast with the given snapshot.
func (c *Client) ImportForecast(ctx context.Context, alerts []WeatherAlert) error {
	return c.do(ctx, http.MethodPut, c.projectPath("weather"), alerts, nil)
}

// ImportCrew upserts crew presence records.
func (c *Client) ImportCrew(ctx context.Context, members []CrewMember) error {
	return c.do(ctx, http.MethodPut, c.projectPath("crew"), members, nil)
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.projectPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
