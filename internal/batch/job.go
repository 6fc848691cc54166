package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status mirrors tasks.Status but carries the batch-specific
// "completed with errors" terminal state.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusCompletedWithErrors
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCompletedWithErrors:
		return "completed_with_errors"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ConfigSnapshot is the per-batch execution configuration, fixed at creation.
type ConfigSnapshot struct {
	ParallelLimit        int
	DelayBetweenRequests time.Duration
	OutputFormat         string
	UseCache             bool
}

// Job is one batch submission: N URLs run under one semaphore, with
// per-URL results/errors and rollups recomputed from state rather than
// hand-incremented from more than one call site.
type Job struct {
	mu      sync.Mutex
	started int // URLs that have entered execution

	BatchID uuid.UUID
	Name    string
	URLs    []string
	Config  ConfigSnapshot
	Status  Status

	Results map[string]string
	Errors  map[string]string

	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
	EstimatedCompletion time.Time

	Completed int
	Failed    int
	Running   int
	Pending   int
}

// NewJob creates a pending Job for urls.
func NewJob(name string, urls []string, cfg ConfigSnapshot) *Job {
	now := time.Now()
	return &Job{
		BatchID:   uuid.New(),
		Name:      name,
		URLs:      urls,
		Config:    cfg,
		Status:    StatusPending,
		Results:   make(map[string]string),
		Errors:    make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
		Pending:   len(urls),
	}
}

// RecordResult marks one URL successful and recomputes rollups.
func (j *Job) RecordResult(url, artifact string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[url] = artifact
	j.rollupLocked()
}

// RecordError marks one URL failed and recomputes rollups.
func (j *Job) RecordError(url, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Errors[url] = errMsg
	j.rollupLocked()
}

// rollupLocked recomputes Completed/Failed/Pending/Running from the
// Results/Errors maps rather than being hand-incremented at each call
// site, so the invariant Completed+Failed+Running+Pending == len(URLs)
// can never drift.
func (j *Job) rollupLocked() {
	j.Completed = len(j.Results)
	j.Failed = len(j.Errors)
	done := j.Completed + j.Failed
	j.Running = j.started - done
	if j.Running < 0 {
		j.Running = 0
	}
	j.Pending = len(j.URLs) - done - j.Running
	if j.Pending < 0 {
		j.Pending = 0
	}
	j.UpdatedAt = time.Now()
}

// MarkURLStarted notes one URL entering execution, moving it from the
// pending rollup to running.
func (j *Job) MarkURLStarted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started++
	j.rollupLocked()
}

// Rollup returns a consistent snapshot of the count fields.
func (j *Job) Rollup() (completed, failed, running, pending int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Completed, j.Failed, j.Running, j.Pending
}

// ProgressPercent is (completed+failed)/total, 100 when there are no URLs.
func (j *Job) ProgressPercent() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	total := len(j.URLs)
	if total == 0 {
		return 100
	}
	return (j.Completed + j.Failed) * 100 / total
}

// SetStatus transitions the batch's status under lock.
func (j *Job) SetStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = s
	j.UpdatedAt = time.Now()
	if s == StatusCompleted || s == StatusCompletedWithErrors || s == StatusFailed || s == StatusCancelled {
		now := time.Now()
		j.CompletedAt = &now
	}
}

// View is a lock-free copy of a Job's fields, safe to hand to an API response.
type View struct {
	BatchID uuid.UUID
	Name    string
	URLs    []string
	Config  ConfigSnapshot
	Status  Status

	Results map[string]string
	Errors  map[string]string

	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
	EstimatedCompletion time.Time

	Completed int
	Failed    int
	Running   int
	Pending   int
}

// Snapshot returns a View, taken under lock, safe to hand to an API response.
func (j *Job) Snapshot() View {
	j.mu.Lock()
	defer j.mu.Unlock()
	return View{
		BatchID:             j.BatchID,
		Name:                j.Name,
		URLs:                j.URLs,
		Config:              j.Config,
		Status:              j.Status,
		Results:             copyMap(j.Results),
		Errors:              copyMap(j.Errors),
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
		CompletedAt:         j.CompletedAt,
		EstimatedCompletion: j.EstimatedCompletion,
		Completed:           j.Completed,
		Failed:              j.Failed,
		Running:             j.Running,
		Pending:             j.Pending,
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
