package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/quizchain/config"
	"github.com/mohammad-safakhou/quizchain/internal/store"
	"github.com/mohammad-safakhou/quizchain/internal/worker"
)

type dispatcherStub struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (d *dispatcherStub) Dispatch(_ context.Context, job worker.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *dispatcherStub) Close() error { return nil }

type runStoreStub struct {
	created  map[string]string
	statuses map[string]string
	runs     map[string]store.Run
}

func newRunStoreStub() *runStoreStub {
	return &runStoreStub{created: map[string]string{}, statuses: map[string]string{}, runs: map[string]store.Run{}}
}

func (s *runStoreStub) CreateRun(_ context.Context, id, startURL string) error {
	s.created[id] = startURL
	return nil
}

func (s *runStoreStub) MarkRunStatus(_ context.Context, id, status string) error {
	s.statuses[id] = status
	return nil
}

func (s *runStoreStub) GetRun(_ context.Context, id string) (store.Run, error) {
	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return r, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

var testCreds = config.Credentials{Email: "student@example.com", Secret: "s3cret"}

func newTestServer(t *testing.T, d worker.Dispatcher, runs RunStore) *echo.Echo {
	t.Helper()
	e, err := New(Options{Credentials: testCreds, Dispatcher: d, Runs: runs, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func postSolve(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/solve", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSolveAccepted(t *testing.T) {
	d := &dispatcherStub{}
	runs := newRunStoreStub()
	e := newTestServer(t, d, runs)

	rec := postSolve(e, `{"email":"student@example.com","secret":"s3cret","url":"https://quiz.example/start"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp solveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" || resp.Message != "Quiz processing started in background" || resp.RunID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(d.jobs) != 1 || d.jobs[0].URL != "https://quiz.example/start" || d.jobs[0].RunID != resp.RunID {
		t.Fatalf("unexpected dispatched jobs: %+v", d.jobs)
	}
	if runs.created[resp.RunID] != "https://quiz.example/start" {
		t.Fatalf("run not recorded: %+v", runs.created)
	}
}

func TestSolveRejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantDetail string
		wantErrors bool
	}{
		{name: "bad json", body: `{"email":`, wantCode: http.StatusBadRequest, wantDetail: "Invalid request body", wantErrors: true},
		{name: "missing secret", body: `{"email":"student@example.com","url":"https://q"}`, wantCode: http.StatusBadRequest, wantDetail: "Invalid request body", wantErrors: true},
		{name: "wrong type", body: `{"email":"student@example.com","secret":1,"url":"https://q"}`, wantCode: http.StatusBadRequest, wantDetail: "Invalid request body", wantErrors: true},
		{name: "wrong secret", body: `{"email":"student@example.com","secret":"nope","url":"https://q"}`, wantCode: http.StatusForbidden, wantDetail: "Invalid secret"},
		{name: "wrong email", body: `{"email":"other@example.com","secret":"s3cret","url":"https://q"}`, wantCode: http.StatusForbidden, wantDetail: "Invalid email"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := &dispatcherStub{}
			rec := postSolve(newTestServer(t, d, nil), tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			var resp validationResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Detail != tt.wantDetail {
				t.Fatalf("detail = %q, want %q", resp.Detail, tt.wantDetail)
			}
			if tt.wantErrors && len(resp.Errors) == 0 {
				t.Fatalf("expected itemized errors")
			}
			if len(d.jobs) != 0 {
				t.Fatalf("no chain may start on rejection, got %+v", d.jobs)
			}
		})
	}
}

func TestSolveQueueFull(t *testing.T) {
	d := &dispatcherStub{err: worker.ErrQueueFull}
	runs := newRunStoreStub()
	rec := postSolve(newTestServer(t, d, runs), `{"email":"student@example.com","secret":"s3cret","url":"https://q"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	for id := range runs.created {
		if runs.statuses[id] != store.RunStatusFailed {
			t.Fatalf("expected run %s marked failed, got %q", id, runs.statuses[id])
		}
	}
}

func TestSolveDispatchErrorIsInternal(t *testing.T) {
	d := &dispatcherStub{err: errors.New("redis down")}
	rec := postSolve(newTestServer(t, d, nil), `{"email":"student@example.com","secret":"s3cret","url":"https://q"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal error") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &dispatcherStub{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"healthy"}` {
		t.Fatalf("unexpected body %s", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("quiz_chains_started_total 1\n"))
	})
	e, err := New(Options{Credentials: testCreds, Dispatcher: &dispatcherStub{}, Metrics: metrics, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "quiz_chains_started_total") {
		t.Fatalf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetRun(t *testing.T) {
	e := echo.New()
	runs := newRunStoreStub()
	runs.runs["run-1"] = store.Run{ID: "run-1", StartURL: "https://q", Status: store.RunStatusCompleted}
	handler := &RunsHandler{Store: runs}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-1")
	if err := handler.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	var got store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if got.ID != "run-1" || got.Status != store.RunStatusCompleted {
		t.Fatalf("unexpected run %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	ctx = e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")
	var he *echo.HTTPError
	if err := handler.get(ctx); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestGetRunWithoutStore(t *testing.T) {
	e := newTestServer(t, &dispatcherStub{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Detail == "" {
		t.Fatalf("expected detail body, got %s", rec.Body.String())
	}
}
