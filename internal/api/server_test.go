package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-insights/sibyl/internal/executor"
	"github.com/atlas-insights/sibyl/internal/memory"
	"github.com/atlas-insights/sibyl/internal/pipeline"
	"github.com/atlas-insights/sibyl/internal/safety"
	"github.com/atlas-insights/sibyl/internal/sqlgen"
)

type fakeProcessor struct {
	answer       pipeline.Answer
	err          error
	gotQuestion  string
	gotSessionID string
}

func (f *fakeProcessor) Process(ctx context.Context, question, sessionID string) (pipeline.Answer, error) {
	f.gotQuestion = question
	f.gotSessionID = sessionID
	return f.answer, f.err
}

type fakeHistory struct{ turns []memory.Turn }

func (f fakeHistory) Recent(ctx context.Context, sessionID string, limit int) []memory.Turn {
	return f.turns
}

type fakeRunner struct {
	result executor.Result
	err    error
}

func (f fakeRunner) Execute(ctx context.Context, sqlText, originalQuestion string) (executor.Result, error) {
	return f.result, f.err
}

type fakeExporter struct {
	key string
	err error
}

func (f fakeExporter) Export(ctx context.Context, result executor.Result, sessionID string) (string, error) {
	return f.key, f.err
}

func newTestServer(p QueryProcessor, history HistoryReader, exporter *ExportHandler) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(8460, "admin", "secret", p, history, exporter, logger)
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewBufferString(`{"username":"admin","password":"secret"}`))
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return body["token"]
}

func doJSON(s *Server, method, path, token string, payload string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var body io.Reader
	if payload != "" {
		body = bytes.NewBufferString(payload)
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, nil)
	rec := doJSON(s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, nil)
	rec := doJSON(s, http.MethodPost, "/api/v1/login", "", `{"username":"admin","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestQuery_RequiresToken(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, nil)
	rec := doJSON(s, http.MethodPost, "/api/v1/query", "", `{"question":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(s, http.MethodPost, "/api/v1/query", "not-a-real-token", `{"question":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with bogus token = %d, want 401", rec.Code)
	}
}

func TestQuery_GeneratesSessionAndSplitsMarkers(t *testing.T) {
	proc := &fakeProcessor{answer: pipeline.Answer{
		Explanation: "Spending rose in 2025. HINT: Ask for a state breakdown. GRAPH_DATA: {\"type\":\"bar\"}",
		SQL:         "SELECT 1",
		Columns:     []string{"c"},
		Rows:        [][]any{{float64(1)}},
	}}
	s := newTestServer(proc, fakeHistory{}, nil)
	token := login(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/query", token, `{"question":"total spend?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("session_id = %q, want generated uuid", resp.SessionID)
	}
	if resp.SessionID != proc.gotSessionID {
		t.Errorf("response session %q != pipeline session %q", resp.SessionID, proc.gotSessionID)
	}
	if resp.Answer != "Spending rose in 2025." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Hint != "Ask for a state breakdown." {
		t.Errorf("hint = %q", resp.Hint)
	}
	if string(resp.GraphData) != `{"type":"bar"}` {
		t.Errorf("graph_data = %s", resp.GraphData)
	}
	if resp.SQL != "SELECT 1" {
		t.Errorf("sql = %q", resp.SQL)
	}
}

func TestQuery_KeepsCallerSession(t *testing.T) {
	proc := &fakeProcessor{answer: pipeline.Answer{Explanation: "ok"}}
	s := newTestServer(proc, fakeHistory{}, nil)
	token := login(t, s)

	sessionID := uuid.NewString()
	rec := doJSON(s, http.MethodPost, "/api/v1/query", token, `{"question":"hi","session_id":"`+sessionID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if proc.gotSessionID != sessionID {
		t.Errorf("pipeline session = %q, want %q", proc.gotSessionID, sessionID)
	}
}

func TestQuery_RejectsBadInput(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, nil)
	token := login(t, s)

	if rec := doJSON(s, http.MethodPost, "/api/v1/query", token, `{"question":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank question status = %d, want 400", rec.Code)
	}
	if rec := doJSON(s, http.MethodPost, "/api/v1/query", token, `{"question":"hi","session_id":"nope"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad session status = %d, want 400", rec.Code)
	}
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"injection", sqlgen.ErrPromptInjection, http.StatusBadRequest},
		{"validation", &safety.ValidationError{Reason: "forbidden keyword: drop"}, http.StatusBadRequest},
		{"data", &executor.DataError{Err: errors.New("syntax error")}, http.StatusUnprocessableEntity},
		{"connection", &executor.ConnectionError{Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeProcessor{err: tt.err}, fakeHistory{}, nil)
			token := login(t, s)
			rec := doJSON(s, http.MethodPost, "/api/v1/query", token, `{"question":"total spend?"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSessionHistory(t *testing.T) {
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	history := fakeHistory{turns: []memory.Turn{
		{Role: memory.RoleUser, Content: "hello", CreatedAt: created},
		{Role: memory.RoleAssistant, Content: "hi there", CreatedAt: created.Add(time.Second)},
	}}
	s := newTestServer(&fakeProcessor{}, history, nil)
	token := login(t, s)

	sessionID := uuid.NewString()
	rec := doJSON(s, http.MethodGet, "/api/v1/session/"+sessionID+"/history", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		SessionID string        `json:"session_id"`
		Turns     []historyTurn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Turns) != 2 || resp.Turns[0].Content != "hello" {
		t.Errorf("turns = %+v", resp.Turns)
	}
	if resp.Turns[0].CreatedAt != "2026-02-01T12:00:00Z" {
		t.Errorf("created_at = %q", resp.Turns[0].CreatedAt)
	}

	if rec := doJSON(s, http.MethodGet, "/api/v1/session/not-a-uuid/history", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad session id status = %d, want 400", rec.Code)
	}
}

func TestNewSession(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, nil)
	token := login(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/session/new", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(body["session_id"]); err != nil {
		t.Errorf("session_id = %q, want uuid", body["session_id"])
	}
}

func TestExport_NotConfigured(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, nil)
	token := login(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/export", token, `{"sql":"SELECT 1"}`)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestExport(t *testing.T) {
	handler := &ExportHandler{
		Runner:   fakeRunner{result: executor.Result{Columns: []string{"c"}, Rows: [][]any{{int64(1)}}}},
		Exporter: fakeExporter{key: "exports/2026/02/01/abc.parquet"},
	}
	s := newTestServer(&fakeProcessor{}, fakeHistory{}, handler)
	token := login(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/export", token, `{"sql":"SELECT state_name FROM states"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["key"] != "exports/2026/02/01/abc.parquet" {
		t.Errorf("key = %q", body["key"])
	}

	if rec := doJSON(s, http.MethodPost, "/api/v1/export", token, `{"sql":"DROP TABLE states"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("restricted sql status = %d, want 400", rec.Code)
	}
}

type recordingRunner struct {
	called bool
}

func (r *recordingRunner) Execute(ctx context.Context, sqlText, originalQuestion string) (executor.Result, error) {
	r.called = true
	return executor.Result{Columns: []string{"c"}, Rows: [][]any{{int64(1)}}}, nil
}

func TestExport_RejectsNonSelect(t *testing.T) {
	// Write-capable statements can slip past the keyword guard; the export
	// path must refuse anything that is not a SELECT before execution.
	statements := []string{
		"CALL refresh_materialized_totals()",
		"COPY states TO '/tmp/out.csv'",
		"EXPLAIN ANALYZE SELECT 1",
	}

	for _, sqlText := range statements {
		runner := &recordingRunner{}
		handler := &ExportHandler{Runner: runner, Exporter: fakeExporter{key: "k"}}
		s := newTestServer(&fakeProcessor{}, fakeHistory{}, handler)
		token := login(t, s)

		body, _ := json.Marshal(map[string]string{"sql": sqlText})
		rec := doJSON(s, http.MethodPost, "/api/v1/export", token, string(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("export %q status = %d, want 400", sqlText, rec.Code)
		}
		if runner.called {
			t.Errorf("export %q must not reach the runner", sqlText)
		}
	}
}
