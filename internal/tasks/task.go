// Package tasks implements the thread-safe task registry: the
// active/completed partition every submitted scrape or batch job moves
// through from creation to a terminal status.
package tasks

import (
	"time"

	"github.com/google/uuid"
	"github.com/ishaanrender/scrapegoat-render/internal/format"
)

// Status is the task's position in its status DAG.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
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
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether a status can no longer transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Metadata carries the small set of result-describing fields attached
// to a completed task, separate from the rendered artifact itself.
type Metadata struct {
	WordCount   int            `json:"word_count"`
	ReadingTime int            `json:"reading_time"`
	MLAnalysis  map[string]any `json:"ml_analysis,omitempty"`
}

// Task is one submitted scrape job and its current lifecycle state.
type Task struct {
	ID                 uuid.UUID
	URL                string
	OutputFormat       format.OutputFormat
	TransformProvider  *string
	TransformModel     *string
	CustomInstructions *string

	Status          Status
	ProgressPercent int
	StatusMessage   string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	ResultArtifact   *string
	TaskMetadata     Metadata
	ExecutionTimeMs  int64
	ContentSizeBytes int
	TokensUsed       int
	ErrorMessage     *string
}

// InitialFields is the subset of Task set at creation time.
type InitialFields struct {
	URL                string
	OutputFormat       format.OutputFormat
	TransformProvider  *string
	TransformModel     *string
	CustomInstructions *string
}

// Patch is a partial update applied during execution (progress ticks).
type Patch struct {
	Status          *Status
	ProgressPercent *int
	StatusMessage   *string
}

// ResultFields is the subset of Task set on successful completion.
type ResultFields struct {
	Artifact         string
	Metadata         Metadata
	ExecutionTimeMs  int64
	ContentSizeBytes int
	TokensUsed       int
}

// ManagerStats summarizes the registry's current contents.
type ManagerStats struct {
	Active         int
	Completed      int
	TotalCreated   int64
	TotalCompleted int64
	TotalFailed    int64
	TotalCancelled int64
}
