package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/answer-agent/pkg/config"
)

// fakeModel answers every generation call with a fixed draft.
type fakeModel struct {
	draft string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.draft}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.draft, nil
}

// offlineConfig disables every tool and trims the loop so job workers finish
// quickly without touching the network.
const offlineConfig = `
llm:
  retry_base_delay: 1ms
research:
  max_iterations: 1
  use_llm_evaluator: false
tools:
  web_search:
    enabled: false
    max_results: 3
    timeout: 5s
  fetch_content:
    enabled: false
    max_length: 2000
    timeout: 5s
  encyclopedia:
    enabled: false
    max_results: 2
    timeout: 5s
`

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(offlineConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := config.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	svc := NewService(store, &fakeModel{draft: "a draft answer"})
	return NewHandler(svc), path
}

func doRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndPollJob(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodPost, "/api/research", `{"query":"what is go"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created Job
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("bad create response: %v", err)
	}
	if created.ID == uuid.Nil || created.Query != "what is go" {
		t.Fatalf("create response = %+v", created)
	}

	deadline := time.Now().Add(5 * time.Second)
	var job Job
	for {
		w = doRequest(t, h, http.MethodGet, "/api/research/"+created.ID.String(), "")
		if w.Code != http.StatusOK {
			t.Fatalf("get status = %d", w.Code)
		}
		if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
			t.Fatal(err)
		}
		if job.Status == "completed" || job.Status == "degraded" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in status %q", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if job.Result == nil || job.Result.FinalAnswer == "" {
		t.Errorf("finished job has no answer: %+v", job)
	}
	if job.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", job.Iterations)
	}

	w = doRequest(t, h, http.MethodGet, "/api/research/"+created.ID.String()+"/logs", "")
	if w.Code != http.StatusOK {
		t.Errorf("logs status = %d", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/api/research", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var jobs []Job
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Errorf("listed %d jobs, want 1", len(jobs))
	}
}

func TestCreateJobValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	if w := doRequest(t, h, http.MethodPost, "/api/research", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing query: status = %d, want 400", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/api/research/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid uuid: status = %d, want 400", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/api/research/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown job: status = %d, want 404", w.Code)
	}
}

func TestToolStatusEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodGet, "/api/tools", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Tools map[string]config.ToolConfig `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Tools["web_search"].Enabled {
		t.Error("web_search should report disabled")
	}
}

func TestConfigReloadEndpoint(t *testing.T) {
	h, path := newTestHandler(t)

	updated := strings.Replace(offlineConfig, "max_iterations: 1", "max_iterations: 2", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	w := doRequest(t, h, http.MethodPost, "/api/config/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body %s", w.Code, w.Body.String())
	}
	if got := h.Service.Store.Current().Research.MaxIterations; got != 2 {
		t.Errorf("active max_iterations = %d, want 2", got)
	}

	if err := os.WriteFile(path, []byte("research:\n  max_iterations: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w = doRequest(t, h, http.MethodPost, "/api/config/reload", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid reload status = %d, want 400", w.Code)
	}
	if got := h.Service.Store.Current().Research.MaxIterations; got != 2 {
		t.Errorf("snapshot after failed reload = %d, want 2", got)
	}
}
