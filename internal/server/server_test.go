package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("siteline")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC) }
	if _, err := e.InitProject(context.Background(), cfg.Project.ID, "Renovation", "", "2024-06-01", "2024-07-01", "tester"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	if err := e.Repo.UpsertProjectConfig(context.Background(), cfg.Project.ID, cfg); err != nil {
		t.Fatalf("seed project config: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{AllowLegacyActorHeader: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "tester")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createTask(t *testing.T, srv *testServer, projectID string, payload map[string]any) domain.Task {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/tasks", payload, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Task
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	return created
}

func TestTimelineLocksAndDelayBatch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	projectID := "siteline"
	client := srv.Client()

	createTask(t, srv, projectID, map[string]any{"title": "Order tile"})
	overdue := createTask(t, srv, projectID, map[string]any{"title": "Install tile", "due_date": "2024-06-12"})
	later := createTask(t, srv, projectID, map[string]any{"title": "Install baseboard", "due_date": "2024-06-20"})

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+projectID+"/timeline", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("timeline status %d: %s", res.StatusCode, string(data))
	}
	var timeline struct {
		Phases []struct {
			Phase        string `json:"phase"`
			Locked       bool   `json:"locked"`
			LockReason   string `json:"lock_reason,omitempty"`
			SubTimelines []struct {
				Delayed   bool `json:"delayed"`
				DelayDays int  `json:"delay_days"`
			} `json:"sub_timelines"`
		} `json:"phases"`
		Pending []struct {
			ID        string `json:"id"`
			Kind      string `json:"kind"`
			Proposals []struct {
				TaskID     string `json:"task_id"`
				NewDueDate string `json:"new_due_date"`
			} `json:"proposals"`
		} `json:"pending_batches"`
	}
	if err := json.Unmarshal(data, &timeline); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if len(timeline.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(timeline.Phases))
	}
	if timeline.Phases[0].Phase != "preparation" || timeline.Phases[1].Phase != "execution" {
		t.Fatalf("unexpected phase order: %+v", timeline.Phases)
	}
	if !timeline.Phases[1].Locked {
		t.Fatalf("execution should be locked behind incomplete preparation")
	}
	if len(timeline.Pending) != 1 || timeline.Pending[0].Kind != "delay" {
		t.Fatalf("expected one pending delay batch, got %+v", timeline.Pending)
	}
	batch := timeline.Pending[0]
	if len(batch.Proposals) != 1 || batch.Proposals[0].TaskID != later.ID || batch.Proposals[0].NewDueDate != "2024-06-23" {
		t.Fatalf("unexpected proposals %+v", batch.Proposals)
	}
	_ = overdue

	confirmRes, confirmBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/shifts/"+batch.ID+"/confirm", nil, nil)
	if confirmRes.StatusCode != http.StatusOK {
		t.Fatalf("confirm status %d: %s", confirmRes.StatusCode, string(confirmBody))
	}
	var confirmed struct {
		Results []struct {
			TaskID string `json:"task_id"`
			OK     bool   `json:"ok"`
		} `json:"results"`
	}
	if err := json.Unmarshal(confirmBody, &confirmed); err != nil {
		t.Fatalf("unmarshal confirm: %v", err)
	}
	if len(confirmed.Results) != 1 || !confirmed.Results[0].OK {
		t.Fatalf("unexpected results %+v", confirmed.Results)
	}

	taskRes, taskBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+projectID+"/tasks/"+later.ID, nil, nil)
	if taskRes.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d %s", taskRes.StatusCode, string(taskBody))
	}
	var fetched domain.Task
	_ = json.Unmarshal(taskBody, &fetched)
	if fetched.DueDate == nil || *fetched.DueDate != "2024-06-23" {
		t.Fatalf("due date not shifted: %v", fetched.DueDate)
	}
}

func TestRescheduleByPixelDrag(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	projectID := "siteline"
	client := srv.Client()

	task := createTask(t, srv, projectID, map[string]any{"title": "Install tile", "due_date": "2024-06-20"})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/tasks/"+task.ID+"/reschedule", map[string]any{
		"pixel_delta": 95.0,
		"day_width":   40,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reschedule status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Task  domain.Task `json:"task"`
		Moved bool        `json:"moved"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Moved || out.Task.DueDate == nil || *out.Task.DueDate != "2024-06-22" {
		t.Fatalf("expected move to 2024-06-22, got %+v", out)
	}

	// a sub-half-day drag does nothing
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/tasks/"+task.ID+"/reschedule", map[string]any{
		"pixel_delta": 10.0,
		"day_width":   40,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("noop reschedule status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &out)
	if out.Moved {
		t.Fatalf("sub-half-day drag must not move the task")
	}
}

func TestBulkCompleteLockedPhaseConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	projectID := "siteline"
	client := srv.Client()

	createTask(t, srv, projectID, map[string]any{"title": "Order tile"})
	createTask(t, srv, projectID, map[string]any{"title": "Install tile"})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/phases/execution/complete", map[string]any{}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for locked phase, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "phase_locked" {
		t.Fatalf("expected phase_locked code, got %q", envelope.Error.Code)
	}
}

func TestProjectDateShiftEndToEnd(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	projectID := "siteline"
	client := srv.Client()

	open := createTask(t, srv, projectID, map[string]any{"title": "Install tile", "due_date": "2024-06-10"})

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/projects/"+projectID+"/dates", map[string]any{
		"start_date": "2024-06-08",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update dates status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Project domain.Project `json:"project"`
		Batch   *struct {
			ID        string `json:"id"`
			Kind      string `json:"kind"`
			Proposals []struct {
				TaskID     string `json:"task_id"`
				NewDueDate string `json:"new_due_date"`
				ShiftDays  int    `json:"shift_days"`
			} `json:"proposals"`
		} `json:"batch"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Project.StartDate == nil || *out.Project.StartDate != "2024-06-08" {
		t.Fatalf("start date not updated: %+v", out.Project)
	}
	if out.Batch == nil || out.Batch.Kind != "project_dates" {
		t.Fatalf("expected propagation batch, got %+v", out.Batch)
	}
	if len(out.Batch.Proposals) != 1 || out.Batch.Proposals[0].TaskID != open.ID ||
		out.Batch.Proposals[0].NewDueDate != "2024-06-17" || out.Batch.Proposals[0].ShiftDays != 7 {
		t.Fatalf("unexpected proposals %+v", out.Batch.Proposals)
	}

	dismissRes, dismissBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/shifts/"+out.Batch.ID+"/dismiss", nil, nil)
	if dismissRes.StatusCode >= 300 {
		t.Fatalf("dismiss status %d: %s", dismissRes.StatusCode, string(dismissBody))
	}
	taskRes, taskBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+projectID+"/tasks/"+open.ID, nil, nil)
	if taskRes.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d", taskRes.StatusCode)
	}
	var fetched domain.Task
	_ = json.Unmarshal(taskBody, &fetched)
	if fetched.DueDate == nil || *fetched.DueDate != "2024-06-10" {
		t.Fatalf("dismiss must not mutate tasks, got %v", fetched.DueDate)
	}
}

func TestWeatherImportSurfacesConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	projectID := "siteline"
	client := srv.Client()

	createTask(t, srv, projectID, map[string]any{"title": "Install tile", "due_date": "2024-06-18"})

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/projects/"+projectID+"/weather", []map[string]any{
		{"date": "2024-06-18", "severity": "danger", "message": "lightning risk"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("import weather status %d: %s", res.StatusCode, string(data))
	}

	tlRes, tlBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+projectID+"/timeline", nil, nil)
	if tlRes.StatusCode != http.StatusOK {
		t.Fatalf("timeline status %d: %s", tlRes.StatusCode, string(tlBody))
	}
	var timeline struct {
		Phases []struct {
			Phase        string `json:"phase"`
			SubTimelines []struct {
				Conflict        string `json:"conflict"`
				ConflictMessage string `json:"conflict_message,omitempty"`
			} `json:"sub_timelines"`
		} `json:"phases"`
	}
	if err := json.Unmarshal(tlBody, &timeline); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	var found bool
	for _, phase := range timeline.Phases {
		if phase.Phase != "execution" {
			continue
		}
		for _, sub := range phase.SubTimelines {
			if sub.Conflict == "weather" && sub.ConflictMessage == "lightning risk" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("weather conflict not surfaced: %s", string(tlBody))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/projects", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
}
