package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskpulse/internal/hub"
	"taskpulse/internal/mail"
	"taskpulse/internal/model"
	"taskpulse/internal/notification"
	"taskpulse/internal/scan"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

const testAdminToken = "test-admin-token"

type testEnv struct {
	srv   *Server
	hub   *hub.Hub
	store store.Store
	prov  *mail.MockProvider
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	log := logx.Nop()

	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "crm.db")})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	h := hub.New(log)
	sc := scan.New(scan.Config{Enabled: true}, st, h, nil, log, nil)

	prov := mail.NewMockProvider(log)
	th := mail.NewThrottle()
	sender := mail.NewSender(prov, th, mail.StaticDirectory{"u1": "u1@example.com"}, log, nil)
	job := mail.NewJob(mail.JobConfig{}, st, th, sender, log)
	t.Cleanup(job.Stop)

	srv := New(Config{AdminToken: testAdminToken, RateRPS: 1000, RateBurst: 1000}, h, sc, job, sender, st, nil, log)
	srv.nowFn = func() time.Time { return now }
	return &testEnv{srv: srv, hub: h, store: st, prov: prov, now: now}
}

func (e *testEnv) seedTask(t *testing.T, task model.Task) {
	t.Helper()
	if err := e.store.UpsertTask(context.Background(), task); err != nil {
		t.Fatalf("UpsertTask(%s): %v", task.ID, err)
	}
}

func at(t time.Time) *time.Time { return &t }

func TestEventsStreamDeliversDispatch(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("X-User-ID", "u1")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	frame := readFrame(t, r)
	if !strings.Contains(frame, `"type":"connected"`) {
		t.Fatalf("first frame = %q, want connected", frame)
	}

	// Registration completes before the connected frame is readable, but
	// give the handler a beat to be safe.
	waitFor(t, func() bool { return env.hub.Connections("u1") == 1 })

	task := model.Task{ID: "t1", Name: "review", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(env.now.Add(-time.Hour))}
	n := notification.NewTaskOverdue(task, env.now)
	if got := env.hub.Dispatch("u1", n); got != 1 {
		t.Fatalf("Dispatch delivered to %d connections, want 1", got)
	}

	frame = readFrame(t, r)
	if !strings.Contains(frame, `"id":"task-overdue-t1"`) {
		t.Fatalf("pushed frame = %q, want the overdue notification", frame)
	}
}

func TestEventsRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestTaskPullCategories(t *testing.T) {
	env := newTestEnv(t)
	env.seedTask(t, model.Task{ID: "t-over", Name: "a", Priority: model.PriorityLow, AssigneeID: "u1", DueAt: at(env.now.Add(-time.Hour))})
	env.seedTask(t, model.Task{ID: "t-due", Name: "b", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(env.now.Add(20 * time.Hour))})
	env.seedTask(t, model.Task{ID: "t-start", Name: "c", Priority: model.PriorityMedium, AssigneeID: "u1", StartsAt: at(env.now.Add(time.Hour))})
	env.seedTask(t, model.Task{ID: "t-other", Name: "d", Priority: model.PriorityHigh, AssigneeID: "u2", DueAt: at(env.now.Add(-time.Hour))})

	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/notifications/tasks", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /notifications/tasks: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Overdue      []json.RawMessage `json:"overdue"`
		DueSoon      []json.RawMessage `json:"dueSoon"`
		StartingSoon []json.RawMessage `json:"startingSoon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The pull view has no HIGH-priority restriction and ignores the
	// dispatch cache; t-other belongs to u2 and must not leak in.
	if len(body.Overdue) != 1 || len(body.DueSoon) != 1 || len(body.StartingSoon) != 1 {
		t.Fatalf("got %d/%d/%d notifications, want 1/1/1",
			len(body.Overdue), len(body.DueSoon), len(body.StartingSoon))
	}
	if !strings.Contains(string(body.DueSoon[0]), `"id":"task-due-t-due"`) {
		t.Fatalf("dueSoon entry = %s", body.DueSoon[0])
	}
}

func TestScanEndpointAuth(t *testing.T) {
	env := newTestEnv(t)
	// The scan service runs on the real clock, so seed relative to it.
	env.seedTask(t, model.Task{ID: "t1", Name: "a", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(time.Now().Add(-time.Hour))})

	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/scan", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /scan: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/scan", strings.NewReader(`{"checkProjects":false}`))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST /scan: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res scan.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Nobody is connected, so the qualifying task is dropped silently.
	if res.Dropped != 1 {
		t.Fatalf("result = %+v, want 1 dropped", res)
	}
}

func TestRemindersLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedTask(t, model.Task{ID: "t1", Name: "a", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(time.Now().Add(time.Hour))})

	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	post := func(body string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/reminders", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("POST /reminders: %v", err)
		}
		return resp
	}

	resp := post(`{"action":"start"}`)
	var st struct {
		Running bool `json:"running"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if !st.Running {
		t.Fatal("start should leave the job running")
	}

	resp = post(`{"action":"check"}`)
	var sum mail.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if sum.Sent != 1 {
		t.Fatalf("check summary = %+v, want 1 sent", sum)
	}
	if got := len(env.prov.Sent()); got != 1 {
		t.Fatalf("provider received %d messages, want 1", got)
	}

	resp = post(`{"action":"stop"}`)
	resp.Body.Close()

	resp = post(`{"action":"selfdestruct"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d, want 400", resp.StatusCode)
	}
}

func TestReminderPreview(t *testing.T) {
	env := newTestEnv(t)
	env.seedTask(t, model.Task{ID: "t1", Name: "board deck", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(env.now.Add(time.Hour))})

	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/reminders/preview?task=t1", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET preview: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var b strings.Builder
	if _, err := bufio.NewReader(resp.Body).WriteTo(&b); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(b.String(), "board deck") {
		t.Fatal("preview body should contain the task name")
	}
	if got := len(env.prov.Sent()); got != 0 {
		t.Fatalf("preview must not send, provider got %d messages", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/reminders/preview?task=missing", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET preview: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.srv.limiter = newIPLimiter(1, 2)

	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	var last int
	for i := 0; i < 4; i++ {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/scan", strings.NewReader("{}"))
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("POST /scan: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("final status = %d, want 429 after burst exhausted", last)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

// readFrame reads one SSE frame (up to the blank separator line).
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
