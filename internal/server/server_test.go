package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/morezero/agent-exchange/internal/config"
	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/session"
	"github.com/morezero/agent-exchange/pkg/supervisor"
)

const serverTestPrefix = "server:server_test"

// mockRegistry implements registryForServer for handler tests.
type mockRegistry struct {
	agents []*registry.AgentDescriptor
	health *registry.HealthOutput
}

func (m *mockRegistry) Agents() []*registry.AgentDescriptor { return m.agents }

func (m *mockRegistry) Health() *registry.HealthOutput {
	if m.health != nil {
		return m.health
	}
	return &registry.HealthOutput{Status: "unhealthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// mockTurns implements turnServer and records the last call.
type mockTurns struct {
	res    *supervisor.TurnResult
	err    error
	events []supervisor.StreamEvent

	gotPrompt   string
	gotThreadID string
}

func (m *mockTurns) Serve(_ context.Context, prompt, threadID string) (*supervisor.TurnResult, error) {
	m.gotPrompt, m.gotThreadID = prompt, threadID
	if m.err != nil {
		return nil, m.err
	}
	res := *m.res
	if res.ThreadID == "" {
		res.ThreadID = threadID
	}
	return &res, nil
}

func (m *mockTurns) ServeStream(_ context.Context, prompt, threadID string) <-chan supervisor.StreamEvent {
	m.gotPrompt, m.gotThreadID = prompt, threadID
	out := make(chan supervisor.StreamEvent, len(m.events))
	for _, ev := range m.events {
		out <- ev
	}
	close(out)
	return out
}

// pingStore is a session store whose Ping result is fixed.
type pingStore struct {
	*session.MemoryStore
	err error
}

func (p *pingStore) Ping(context.Context) error { return p.err }

func healthyRegistry(t *testing.T) *mockRegistry {
	t.Helper()
	reg, err := registry.New(bootstrap.GetDefaultCatalog(bootstrap.Endpoints{
		WeatherURL: bootstrap.AgentURL("weather", 9998),
		FarmURL:    bootstrap.AgentURL("farm", 9999),
	}).Agents)
	if err != nil {
		t.Fatalf("%s - registry.New failed: %v", serverTestPrefix, err)
	}
	return &mockRegistry{agents: reg.Agents(), health: reg.Health()}
}

// testServer returns a Server with mocks and test config for HTTP handler tests.
func testServer(t *testing.T, reg registryForServer, turns turnServer) *Server {
	t.Helper()
	cfg := &config.Config{
		Transport:          "NATS",
		HealthCheckTimeout: 5 * time.Second,
	}
	return newServer(cfg, reg, turns, session.NewMemoryStore())
}

func TestHandleHome_Success(t *testing.T) {
	s := testServer(t, healthyRegistry(t), &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("%s - Content-Type = %q, want text/html", serverTestPrefix, ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Coffee Exchange", "status-healthy", bootstrap.WeatherAgentID, bootstrap.SkillFlavor, "a2a.weather-agent.v1", "over NATS"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - home page missing %q", serverTestPrefix, want)
		}
	}
}

func TestHandleHome_NoAgents(t *testing.T) {
	s := testServer(t, &mockRegistry{}, &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "No agents registered.") || !strings.Contains(body, "status-unhealthy") {
		t.Errorf("%s - unexpected home page for empty registry", serverTestPrefix)
	}
}

func TestHandleHome_OnlyRoot(t *testing.T) {
	s := testServer(t, healthyRegistry(t), &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		reg        *mockRegistry
		pingErr    error
		usePinger  bool
		wantStatus int
		wantBody   string
	}{
		{"healthy", healthyRegistry(t), nil, false, http.StatusOK, "healthy"},
		{"empty registry", &mockRegistry{}, nil, false, http.StatusServiceUnavailable, "unhealthy"},
		{"store ping ok", healthyRegistry(t), nil, true, http.StatusOK, "healthy"},
		{"store ping fails", healthyRegistry(t), errors.New("connection refused"), true, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, tt.reg, &mockTurns{})
			if tt.usePinger {
				s.store = &pingStore{MemoryStore: session.NewMemoryStore(), err: tt.pingErr}
			}
			rec := httptest.NewRecorder()
			s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("%s - status = %d, want %d", serverTestPrefix, rec.Code, tt.wantStatus)
			}
			var out healthOutput
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatalf("%s - decode health: %v", serverTestPrefix, err)
			}
			if out.Status != tt.wantBody {
				t.Errorf("%s - status field = %q, want %q", serverTestPrefix, out.Status, tt.wantBody)
			}
			if _, ok := out.Checks["sessionStore"]; ok != tt.usePinger {
				t.Errorf("%s - sessionStore check present = %t, want %t", serverTestPrefix, ok, tt.usePinger)
			}
		})
	}
}

func TestHandleReady(t *testing.T) {
	s := testServer(t, &mockRegistry{}, &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if out["status"] != "ready" {
		t.Errorf("%s - status = %q, want ready", serverTestPrefix, out["status"])
	}
}

func TestHandleAgents(t *testing.T) {
	s := testServer(t, healthyRegistry(t), &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	var out struct {
		Agents []registry.AgentDescriptor `json:"agents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if len(out.Agents) != 2 {
		t.Fatalf("%s - expected 2 agents, got %d", serverTestPrefix, len(out.Agents))
	}
	if out.Agents[0].ID != bootstrap.FarmAgentID || out.Agents[1].ID != bootstrap.WeatherAgentID {
		t.Errorf("%s - unexpected agent order %q, %q", serverTestPrefix, out.Agents[0].ID, out.Agents[1].ID)
	}

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("%s - POST /agents status = %d, want 405", serverTestPrefix, rec.Code)
	}
}

func postPrompt(s *Server, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/prompt", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandlePrompt(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		turns      *mockTurns
		wantStatus int
		wantDetail string
	}{
		{
			name:       "success",
			body:       `{"prompt":"What's the weather in Colombia?","thread_id":"t-1"}`,
			turns:      &mockTurns{res: &supervisor.TurnResult{Response: "Sunny"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid json",
			body:       `{"prompt":`,
			turns:      &mockTurns{},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid request body",
		},
		{
			name:       "invalid input",
			body:       `{"prompt":"   "}`,
			turns:      &mockTurns{err: fmt.Errorf("supervisor - prompt is empty: %w", a2a.ErrInvalidInput)},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Prompt must not be empty",
		},
		{
			name:       "remote failure",
			body:       `{"prompt":"weather in Brazil"}`,
			turns:      &mockTurns{err: fmt.Errorf("agentclient - send failed: %w", a2a.ErrTransportUnavailable)},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Operation failed: The agent is unavailable",
		},
		{
			name:       "remote timeout",
			body:       `{"prompt":"weather in Brazil"}`,
			turns:      &mockTurns{err: fmt.Errorf("transport:nats - request on a2a.weather-agent.v1 timed out: %w", a2a.ErrRemoteTimeout)},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Operation failed: The agent did not respond in time",
		},
		{
			name:       "remote agent error",
			body:       `{"prompt":"flavor of Kenya"}`,
			turns:      &mockTurns{err: fmt.Errorf("supervisor - http://farm:9999/ failed: %w", &a2a.RemoteAgentError{Code: "COMPUTATION_FAILED", Message: "llm quota"})},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Operation failed: The agent could not complete the request",
		},
		{
			name:       "unclassified failure",
			body:       `{"prompt":"flavor of Kenya"}`,
			turns:      &mockTurns{err: errors.New("session:postgres - insert failed: pool closed")},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Operation failed: Unexpected error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, healthyRegistry(t), tt.turns)
			rec := postPrompt(s, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("%s - status = %d, want %d (body %s)", serverTestPrefix, rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var out errorBody
				if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
					t.Fatalf("%s - decode error body: %v", serverTestPrefix, err)
				}
				if out.Detail != tt.wantDetail {
					t.Errorf("%s - detail = %q, want %q", serverTestPrefix, out.Detail, tt.wantDetail)
				}
				return
			}
			var out promptResponse
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatalf("%s - decode response: %v", serverTestPrefix, err)
			}
			if out.Response != "Sunny" || out.ThreadID != "t-1" {
				t.Errorf("%s - unexpected response %+v", serverTestPrefix, out)
			}
			if tt.turns.gotPrompt != "What's the weather in Colombia?" {
				t.Errorf("%s - prompt passed = %q", serverTestPrefix, tt.turns.gotPrompt)
			}
		})
	}
}

func TestHandlePrompt_GeneratesThreadID(t *testing.T) {
	turns := &mockTurns{res: &supervisor.TurnResult{Response: "ok"}}
	s := testServer(t, healthyRegistry(t), turns)
	rec := postPrompt(s, `{"prompt":"hello"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	var out promptResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if out.ThreadID == "" || out.ThreadID != turns.gotThreadID {
		t.Errorf("%s - thread id %q, supervisor got %q", serverTestPrefix, out.ThreadID, turns.gotThreadID)
	}
}

func TestHandlePrompt_MethodNotAllowed(t *testing.T) {
	s := testServer(t, healthyRegistry(t), &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agent/prompt", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("%s - status = %d, want 405", serverTestPrefix, rec.Code)
	}
}

func readEvents(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			t.Fatalf("%s - unexpected SSE line %q", serverTestPrefix, line)
		}
		var ev map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("%s - decode event: %v", serverTestPrefix, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestHandlePrompt_Stream(t *testing.T) {
	turns := &mockTurns{events: []supervisor.StreamEvent{
		{Content: "Sunny in Colombia", ThreadID: "t-9"},
		{ThreadID: "t-9", Done: true},
	}}
	s := testServer(t, healthyRegistry(t), turns)
	rec := postPrompt(s, `{"prompt":"weather in Colombia","thread_id":"t-9","stream":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("%s - Content-Type = %q", serverTestPrefix, ct)
	}
	evs := readEvents(t, rec.Body.String())
	if len(evs) != 2 {
		t.Fatalf("%s - expected 2 events, got %d", serverTestPrefix, len(evs))
	}
	if evs[0]["content"] != "Sunny in Colombia" || evs[0]["thread_id"] != "t-9" {
		t.Errorf("%s - unexpected content event %v", serverTestPrefix, evs[0])
	}
	if evs[1]["done"] != true {
		t.Errorf("%s - unexpected final event %v", serverTestPrefix, evs[1])
	}
	if turns.gotThreadID != "t-9" {
		t.Errorf("%s - thread id passed = %q", serverTestPrefix, turns.gotThreadID)
	}
}

func TestHandlePrompt_StreamError(t *testing.T) {
	turns := &mockTurns{events: []supervisor.StreamEvent{
		{Error: "supervisor - nats a2a.weather-agent.v1: remote timeout", ThreadID: "t-2", Err: a2a.ErrRemoteTimeout},
	}}
	s := testServer(t, healthyRegistry(t), turns)
	rec := postPrompt(s, `{"prompt":"weather in Peru","thread_id":"t-2","stream":true}`)

	evs := readEvents(t, rec.Body.String())
	if len(evs) != 1 {
		t.Fatalf("%s - expected 1 event, got %d", serverTestPrefix, len(evs))
	}
	if evs[0]["error"] != "The agent did not respond in time" || evs[0]["thread_id"] != "t-2" {
		t.Errorf("%s - unexpected error event %v", serverTestPrefix, evs[0])
	}
	if _, ok := evs[0]["Err"]; ok {
		t.Errorf("%s - internal error leaked into the event", serverTestPrefix)
	}
}

func TestRateLimit(t *testing.T) {
	s := newServer(&config.Config{
		HealthCheckTimeout: time.Second,
		RateLimitRPS:       0.001,
		RateLimitBurst:     1,
	}, healthyRegistry(t), &mockTurns{res: &supervisor.TurnResult{Response: "ok"}}, session.NewMemoryStore())

	if rec := postPrompt(s, `{"prompt":"hi"}`); rec.Code != http.StatusOK {
		t.Fatalf("%s - first request status = %d, want 200", serverTestPrefix, rec.Code)
	}
	if rec := postPrompt(s, `{"prompt":"hi"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("%s - second request status = %d, want 429", serverTestPrefix, rec.Code)
	}

	// Health is not limited.
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - health status = %d, want 200", serverTestPrefix, rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t, healthyRegistry(t), &mockTurns{})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/agent/prompt", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("%s - status = %d, want 204", serverTestPrefix, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("%s - missing CORS header", serverTestPrefix)
	}
}

func TestHTTPAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		want string
	}{
		{"port only", &config.Config{HTTPPort: 8000}, ":8000"},
		{"addr wins", &config.Config{HTTPAddr: "0.0.0.0:9000", HTTPPort: 8000}, "0.0.0.0:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := httpAddr(tt.cfg); got != tt.want {
				t.Errorf("%s - httpAddr = %q, want %q", serverTestPrefix, got, tt.want)
			}
		})
	}
}
