package usecase

import (
	"sync"
	"time"

	"recoveryd/internal/domain"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobBuild JobKind = "build"
	JobPhase JobKind = "phase"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one asynchronous build or phase execution.
type Job struct {
	ID         string              `json:"id"`
	Kind       JobKind             `json:"kind"`
	Status     JobStatus           `json:"status"`
	Build      *domain.BuildResult `json:"build,omitempty"`
	Phase      *PhaseExecution     `json:"phase,omitempty"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Tracker holds in-flight and recently finished async jobs.
type Tracker struct {
	Clock func() time.Time

	mu   sync.Mutex
	jobs map[string]*Job
}

func (t *Tracker) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

func (t *Tracker) Start(kind JobKind) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    JobRunning,
		StartedAt: t.now(),
	}
	t.mu.Lock()
	if t.jobs == nil {
		t.jobs = make(map[string]*Job)
	}
	t.jobs[job.ID] = job
	t.mu.Unlock()
	return job
}

func (t *Tracker) Complete(id string, build *domain.BuildResult, phase *PhaseExecution) {
	t.finish(id, JobCompleted, build, phase, "")
}

func (t *Tracker) Fail(id string, errMsg string) {
	t.finish(id, JobFailed, nil, nil, errMsg)
}

func (t *Tracker) finish(id string, status JobStatus, build *domain.BuildResult, phase *PhaseExecution, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Build = build
	job.Phase = phase
	job.Error = errMsg
	end := t.now()
	job.FinishedAt = &end
}

func (t *Tracker) Get(id string) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, domain.ErrBuildNotFound
	}
	copied := *job
	return &copied, nil
}
