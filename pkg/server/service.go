package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/answer-agent/pkg/config"
	"github.com/mikeboe/answer-agent/pkg/research"
)

// Service runs research jobs in background workers and keeps their state and
// logs in memory. Each job gets its own engine instance and the configuration
// snapshot that was current when the job was created.
type Service struct {
	Store *config.Store
	Model llms.Model

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	logs map[uuid.UUID]*MemoryLogHandler
}

func NewService(store *config.Store, model llms.Model) *Service {
	return &Service{
		Store: store,
		Model: model,
		jobs:  make(map[uuid.UUID]*Job),
		logs:  make(map[uuid.UUID]*MemoryLogHandler),
	}
}

type Job struct {
	ID         uuid.UUID                `json:"id"`
	Query      string                   `json:"query"`
	Status     string                   `json:"status"`
	Result     *research.ResearchResult `json:"result,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
	Iterations int                      `json:"iterations"`
}

type CreateJobRequest struct {
	Query string `json:"query" binding:"required"`
}

// CreateJob registers a job and starts its worker.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	job := &Job{
		ID:        uuid.New(),
		Query:     req.Query,
		Status:    "pending",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	handler := NewMemoryLogHandler()

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.logs[job.ID] = handler
	s.mu.Unlock()

	go s.runWorker(job.ID, req.Query, handler)

	snapshot := *job
	return &snapshot, nil
}

func (s *Service) runWorker(jobID uuid.UUID, query string, handler *MemoryLogHandler) {
	s.updateJob(jobID, func(j *Job) { j.Status = "running" })

	// The snapshot taken here serves the whole job; reloads affect later jobs.
	cfg := s.Store.Current()

	engine := research.NewEngine(cfg, s.Model)
	engine.SetLogger(slog.New(handler))

	result := engine.Run(context.Background(), query)

	s.updateJob(jobID, func(j *Job) {
		j.Status = "completed"
		if result.Degraded {
			j.Status = "degraded"
		}
		j.Result = result
		j.Iterations = len(result.Iterations)
	})
}

func (s *Service) updateJob(id uuid.UUID, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}

func (s *Service) GetJob(id uuid.UUID) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// ListJobs returns jobs newest first.
func (s *Service) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (s *Service) GetJobLogs(id uuid.UUID) ([]LogEntry, bool) {
	s.mu.RLock()
	handler, ok := s.logs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return handler.Entries(), true
}
