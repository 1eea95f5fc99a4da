package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PowerPulse/internal/agent"
	"PowerPulse/internal/llm"
	"PowerPulse/internal/supervisor"
	"PowerPulse/internal/task"
)

func TestHandleAnalysisDetailSuccess(t *testing.T) {
	store := task.NewMemoryStore()
	svc := task.NewService(store, task.NewMemoryQueue(8), 3)
	server := NewServer(":0", svc)

	sample := &task.Task{
		ID:         "task-success",
		Week1Path:  "week1.json",
		Week2Path:  "week2.json",
		Status:     task.StatusSucceeded,
		Attempts:   1,
		MaxRetries: 3,
		CreatedAt:  1700000000,
		UpdatedAt:  1700000001,
		Result: &task.ExecutionResult{
			Narrative: "ok",
		},
	}
	if err := store.Create(context.Background(), sample); err != nil {
		t.Fatalf("create sample task: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/task-success", nil)
	rec := httptest.NewRecorder()

	server.handleAnalysisDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	var got task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != sample.ID {
		t.Fatalf("unexpected task id: got %q want %q", got.ID, sample.ID)
	}
	if got.Result == nil || got.Result.Narrative != "ok" {
		t.Fatalf("unexpected task result: %+v", got.Result)
	}
}

func TestHandleAnalysisDetailErrors(t *testing.T) {
	server := NewServer(":0", task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3))

	t.Run("invalid method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/task-1", nil)
		rec := httptest.NewRecorder()

		server.handleAnalysisDetail(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/", nil)
		rec := httptest.NewRecorder()

		server.handleAnalysisDetail(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil)
		rec := httptest.NewRecorder()

		server.handleAnalysisDetail(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestHandleCreateAnalysis(t *testing.T) {
	store := task.NewMemoryStore()
	svc := task.NewService(store, task.NewMemoryQueue(8), 3)
	server := NewServer(":0", svc)

	body := strings.NewReader(`{"week1_path": "w1.json", "week2_path": "w2.json"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	rec := httptest.NewRecorder()

	server.handleAnalyses(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusAccepted)
	}

	var created task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Status != task.StatusPending {
		t.Fatalf("unexpected created task: %+v", created)
	}
}

func TestHandleCreateAnalysisValidation(t *testing.T) {
	svc := task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3)
	server := NewServer(":0", svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	server.handleAnalyses(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

type routerLLM struct {
	response string
}

func (s *routerLLM) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: s.response}, nil
}

type routerAnalyzer struct{}

func (routerAnalyzer) Execute(_ context.Context, _ agent.AnalysisRequest) (*agent.AnalysisResult, error) {
	return &agent.AnalysisResult{Narrative: "narrated"}, nil
}

func TestHandleQueryUnsupported(t *testing.T) {
	router := supervisor.NewRouter(&routerLLM{response: `{"agent_type": null, "agent_args": {}}`}, routerAnalyzer{})
	server := NewServer(":0", task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3), WithQueryRouter(router))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"query": "tell me a joke"}`))
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Result, "power analysis tasks") {
		t.Fatalf("unexpected result: %s", resp.Result)
	}
}

func TestHandleQueryRoutingFailure(t *testing.T) {
	router := supervisor.NewRouter(&routerLLM{response: "not json at all"}, routerAnalyzer{})
	server := NewServer(":0", task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3), WithQueryRouter(router))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"query": "analyze something"}`))
	rec := httptest.NewRecorder()

	server.handleQuery(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestStaticTokenMiddleware(t *testing.T) {
	svc := task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3)
	server := NewServer(":0", svc, WithStaticToken("secret"))
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	// 健康检查不做鉴权。
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	server := NewServer(":0", task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3))
	handler := server.Handler()

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	var snapshot MetricsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.Requests < 4 {
		t.Fatalf("expected at least 4 requests recorded, got %d", snapshot.Requests)
	}
}
