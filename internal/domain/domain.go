package domain

type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Description string  `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	EndDate     *string `json:"end_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Task struct {
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

type Material struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Label     string  `json:"label"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// WeatherAlert is one forecast entry for a calendar day.
type WeatherAlert struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Date      string `json:"date" format:"date"`
	Severity  string `json:"severity" enum:"info,warning,danger"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CrewMember struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	OnSite    bool   `json:"on_site"`
	LastSeen  string `json:"last_seen" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
