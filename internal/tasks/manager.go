package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// validTransition enforces the task status DAG: pending -> running ->
// {completed, failed, cancelled}, plus pending -> cancelled for a task
// cancelled before it starts. Anything else is rejected.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}

// Manager is the active/completed task registry. Every exported method
// takes mu exactly once; *Locked helpers assume the lock is already
// held and must never be called from outside that discipline.
type Manager struct {
	mu        sync.Mutex
	active    map[uuid.UUID]*Task
	completed []*Task // newest first, capped at maxHistory
	cancels   map[uuid.UUID]context.CancelFunc
	maxHistory int

	totalCreated   atomic.Int64
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64
	totalCancelled atomic.Int64
}

// NewManager creates an empty registry capped at maxHistory completed entries.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &Manager{
		active:     make(map[uuid.UUID]*Task),
		cancels:    make(map[uuid.UUID]context.CancelFunc),
		maxHistory: maxHistory,
	}
}

// Add registers a new pending task and returns its generated ID along
// with a context the Scraping Service should run under; cancelling the
// task calls the returned CancelFunc's paired context.
func (m *Manager) Add(fields InitialFields) (uuid.UUID, context.Context) {
	id := uuid.New()
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	task := &Task{
		ID:                 id,
		URL:                fields.URL,
		OutputFormat:       fields.OutputFormat,
		TransformProvider:  fields.TransformProvider,
		TransformModel:     fields.TransformModel,
		CustomInstructions: fields.CustomInstructions,
		Status:             StatusPending,
		StatusMessage:      "task created",
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	m.mu.Lock()
	m.active[id] = task
	m.cancels[id] = cancel
	m.mu.Unlock()

	m.totalCreated.Add(1)
	return id, ctx
}

// Update applies a partial patch to an active task. Progress is
// monotone within a run: a lower percent than previously recorded is
// ignored rather than erroring, since progress callbacks can race.
func (m *Manager) Update(id uuid.UUID, patch Patch) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.active[id]
	if !ok {
		return false
	}

	if patch.Status != nil {
		if !validTransition(task.Status, *patch.Status) && task.Status != *patch.Status {
			return false
		}
		task.Status = *patch.Status
	}
	if patch.ProgressPercent != nil && *patch.ProgressPercent > task.ProgressPercent {
		task.ProgressPercent = *patch.ProgressPercent
	}
	if patch.StatusMessage != nil {
		task.StatusMessage = *patch.StatusMessage
	}
	task.UpdatedAt = time.Now()
	return true
}

// Get returns a copy of a task, active or completed.
func (m *Manager) Get(id uuid.UUID) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.active[id]; ok {
		return *t, true
	}
	for _, t := range m.completed {
		if t.ID == id {
			return *t, true
		}
	}
	return Task{}, false
}

// Complete moves a task from active to completed with a terminal
// "completed" status and the given result fields.
func (m *Manager) Complete(id uuid.UUID, result ResultFields) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.active[id]
	if !ok {
		return false
	}

	now := time.Now()
	task.Status = StatusCompleted
	task.ProgressPercent = 100
	task.StatusMessage = "completed successfully"
	task.ResultArtifact = &result.Artifact
	task.TaskMetadata = result.Metadata
	task.ExecutionTimeMs = result.ExecutionTimeMs
	task.ContentSizeBytes = result.ContentSizeBytes
	task.TokensUsed = result.TokensUsed
	task.CompletedAt = &now
	task.UpdatedAt = now

	m.moveToCompletedLocked(id, task)
	m.totalCompleted.Add(1)
	return true
}

// Fail moves a task from active to completed with a terminal "failed" status.
func (m *Manager) Fail(id uuid.UUID, errMsg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.active[id]
	if !ok {
		return false
	}

	now := time.Now()
	task.Status = StatusFailed
	task.StatusMessage = "failed"
	task.ErrorMessage = &errMsg
	task.CompletedAt = &now
	task.UpdatedAt = now

	m.moveToCompletedLocked(id, task)
	m.totalFailed.Add(1)
	return true
}

// Cancel requests cancellation of an active task's context and marks
// it cancelled. Returns false if the task is not active.
func (m *Manager) Cancel(id uuid.UUID) bool {
	m.mu.Lock()
	task, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	task.Status = StatusCancelled
	task.StatusMessage = "cancelled"
	task.CompletedAt = &now
	task.UpdatedAt = now
	m.moveToCompletedLocked(id, task)
	m.mu.Unlock()

	m.totalCancelled.Add(1)
	return true
}

// moveToCompletedLocked assumes mu is held. It removes the task from
// active, prepends it to completed, and trims history to maxHistory.
// The task's context is cancelled here so nothing derived from it can
// outlive the terminal transition.
func (m *Manager) moveToCompletedLocked(id uuid.UUID, task *Task) {
	if cancel := m.cancels[id]; cancel != nil {
		cancel()
	}
	delete(m.active, id)
	delete(m.cancels, id)

	m.completed = append([]*Task{task}, m.completed...)
	if len(m.completed) > m.maxHistory {
		m.completed = m.completed[:m.maxHistory]
	}
}

// ListActive returns a snapshot of all active tasks.
func (m *Manager) ListActive() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotActiveLocked()
}

func (m *Manager) snapshotActiveLocked() []Task {
	out := make([]Task, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, *t)
	}
	return out
}

// ListCompleted returns up to limit of the most recent completed tasks.
func (m *Manager) ListCompleted(limit int) []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.completed) {
		limit = len(m.completed)
	}
	out := make([]Task, 0, limit)
	for _, t := range m.completed[:limit] {
		out = append(out, *t)
	}
	return out
}

// Stats summarizes the registry.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	active := len(m.active)
	completed := len(m.completed)
	m.mu.Unlock()

	return ManagerStats{
		Active:         active,
		Completed:      completed,
		TotalCreated:   m.totalCreated.Load(),
		TotalCompleted: m.totalCompleted.Load(),
		TotalFailed:    m.totalFailed.Load(),
		TotalCancelled: m.totalCancelled.Load(),
	}
}

// SweepOlderThan removes completed entries whose CompletedAt is older
// than maxAge, returning the count removed.
func (m *Manager) SweepOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.completed[:0:0]
	removed := 0
	for _, t := range m.completed {
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	m.completed = kept
	return removed
}

// Run starts the periodic history sweep; it returns when ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOlderThan(maxAge)
		}
	}
}

// ProgressFunc returns a closure suitable for passing into the Scraping
// Service: it serializes progress updates for one task and refuses to
// ever regress the reported percent.
func (m *Manager) ProgressFunc(id uuid.UUID) func(percent int, message string) {
	var mu sync.Mutex
	return func(percent int, message string) {
		mu.Lock()
		defer mu.Unlock()
		running := StatusRunning
		m.Update(id, Patch{Status: &running, ProgressPercent: &percent, StatusMessage: &message})
	}
}

// ErrNotFound is returned by callers that need a typed not-found error
// around Manager's boolean-returning methods.
var ErrNotFound = fmt.Errorf("task not found")
