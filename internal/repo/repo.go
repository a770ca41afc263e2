package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"siteline/internal/config"
	"siteline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- projects ---

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var desc, start, end sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Status, &desc, &start, &end, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if start.Valid {
		p.StartDate = &start.String
	}
	if end.Valid {
		p.EndDate = &end.String
	}
	return p, err
}

const projectColumns = `id,name,status,description,start_date,end_date,created_at,updated_at`

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,status,description,start_date,end_date,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Status, nullable(p.Description), nullablePtr(p.StartDate), nullablePtr(p.EndDate), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
}

func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	list, err := r.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if len(list) == 0 {
		return domain.Project{}, ErrNotFound
	}
	if len(list) > 1 {
		return domain.Project{}, fmt.Errorf("multiple projects exist; specify --project")
	}
	return list[0], nil
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var desc, start, end sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &desc, &start, &end, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		if start.Valid {
			p.StartDate = &start.String
		}
		if end.Valid {
			p.EndDate = &end.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProject patches status/description/name.
func (r Repo) UpdateProject(ctx context.Context, id string, status string, name, description *string, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProjectDates sets the project date window inside a transaction.
func (r Repo) UpdateProjectDates(ctx context.Context, tx *sql.Tx, id string, start, end *string, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET start_date=?, end_date=?, updated_at=? WHERE id=?`,
		nullablePtr(start), nullablePtr(end), updatedAt, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- project config ---

func (r Repo) UpsertProjectConfig(ctx context.Context, projectID string, cfg *config.Config) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.UpsertProjectConfigTx(ctx, tx, projectID, cfg); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) UpsertProjectConfigTx(ctx context.Context, tx *sql.Tx, projectID string, cfg *config.Config) error {
	data, err := config.ToYAML(cfg)
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `INSERT INTO project_configs(project_id,config_yaml,updated_at) VALUES (?,?,?)
		ON CONFLICT(project_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`,
		projectID, string(data), now)
	return err
}

func (r Repo) GetProjectConfig(ctx context.Context, projectID string) (*config.Config, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM project_configs WHERE project_id=?`, projectID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return config.FromYAML([]byte(raw))
}

// --- tasks ---

const taskColumns = `id,project_id,title,description,priority,status,due_date,assignee_id,created_at,updated_at,completed_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,description,priority,status,due_date,assignee_id,created_at,updated_at,completed_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, nullablePtr(t.Description), t.Priority, t.Status, nullablePtr(t.DueDate), nullablePtr(t.AssigneeID), t.CreatedAt, t.UpdatedAt, nullablePtr(t.CompletedAt))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, priority=?, status=?, due_date=?, assignee_id=?, updated_at=?, completed_at=? WHERE id=?`,
		t.Title, nullablePtr(t.Description), t.Priority, t.Status, nullablePtr(t.DueDate), nullablePtr(t.AssigneeID), t.UpdatedAt, nullablePtr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTaskDueDate moves only the due date; confirmed shift batches apply
// through here so nothing else on the task can drift.
func (r Repo) UpdateTaskDueDate(ctx context.Context, tx *sql.Tx, taskID string, dueDate *string, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET due_date=?, updated_at=? WHERE id=?`,
		nullablePtr(dueDate), updatedAt, taskID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, due, assignee, completed sql.NullString
	err := scan(&t.ID, &t.ProjectID, &t.Title, &desc, &t.Priority, &t.Status, &due, &assignee, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if due.Valid {
		t.DueDate = &due.String
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	if completed.Valid {
		t.CompletedAt = &completed.String
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

type TaskFilters struct {
	ProjectID string
	Status    string
	Assignee  string
	DueBefore string
	DueAfter  string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id=?`
	args := []any{f.ProjectID}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	if f.Assignee != "" {
		query += ` AND assignee_id=?`
		args = append(args, f.Assignee)
	}
	if f.DueBefore != "" {
		query += ` AND due_date IS NOT NULL AND due_date < ?`
		args = append(args, f.DueBefore)
	}
	if f.DueAfter != "" {
		query += ` AND due_date IS NOT NULL AND due_date > ?`
		args = append(args, f.DueAfter)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- materials ---

func (r Repo) InsertMaterial(ctx context.Context, m domain.Material) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO materials(id,project_id,label,quantity,unit,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Label, m.Quantity, nullable(m.Unit), m.CreatedAt)
	return err
}

func (r Repo) ListMaterials(ctx context.Context, projectID string) ([]domain.Material, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,label,quantity,COALESCE(unit,''),created_at FROM materials WHERE project_id=? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Material
	for rows.Next() {
		var m domain.Material
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Label, &m.Quantity, &m.Unit, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) DeleteMaterial(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM materials WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- weather forecast ---

// ReplaceForecast swaps the full forecast table for a project. Imports
// arrive as whole snapshots from the weather provider.
func (r Repo) ReplaceForecast(ctx context.Context, tx *sql.Tx, projectID string, alerts []domain.WeatherAlert) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM weather_alerts WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for _, a := range alerts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO weather_alerts(id,project_id,date,severity,message,created_at) VALUES (?,?,?,?,?,?)`,
			a.ID, projectID, a.Date, a.Severity, a.Message, a.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ListForecast(ctx context.Context, projectID string) ([]domain.WeatherAlert, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,date,severity,message,created_at FROM weather_alerts WHERE project_id=? ORDER BY date ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WeatherAlert
	for rows.Next() {
		var a domain.WeatherAlert
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Date, &a.Severity, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- crew presence ---

func (r Repo) UpsertCrewMember(ctx context.Context, tx *sql.Tx, m domain.CrewMember) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO crew_members(id,project_id,name,on_site,last_seen) VALUES (?,?,?,?,?)
		ON CONFLICT(project_id,id) DO UPDATE SET name=excluded.name, on_site=excluded.on_site, last_seen=excluded.last_seen`,
		m.ID, m.ProjectID, m.Name, boolInt(m.OnSite), m.LastSeen)
	return err
}

func (r Repo) ListCrew(ctx context.Context, projectID string) ([]domain.CrewMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,on_site,last_seen FROM crew_members WHERE project_id=? ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CrewMember
	for rows.Next() {
		var m domain.CrewMember
		var onSite int
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &onSite, &m.LastSeen); err != nil {
			return nil, err
		}
		m.OnSite = onSite != 0
		res = append(res, m)
	}
	return res, rows.Err()
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, projectID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE 1=1`
	var args []any
	if cursor > 0 {
		query += ` AND id < ?`
		args = append(args, cursor)
	}
	if projectID != "" {
		query += ` AND project_id=?`
		args = append(args, projectID)
	}
	if evtType != "" {
		query += ` AND type=?`
		args = append(args, evtType)
	}
	if entityKind != "" {
		query += ` AND entity_kind=?`
		args = append(args, entityKind)
	}
	if entityID != "" {
		query += ` AND entity_id=?`
		args = append(args, entityID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with id > cursor in ascending order, used by
// the webhook dispatcher.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id > ?`
	args := []any{cursor}
	if projectID != "" {
		query += ` AND project_id=?`
		args = append(args, projectID)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) LatestEventID(ctx context.Context, projectID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	var id int64
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
