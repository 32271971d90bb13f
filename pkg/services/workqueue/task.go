// Package workqueue runs analysis and conversion tasks with bounded
// concurrency and retry on transient LLM failures.
package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Kind splits tasks into the two concurrency classes the queue manages.
type Kind string

const (
	// KindAnalysis is local CPU work: parsing, metrics, chunking.
	KindAnalysis Kind = "analysis"
	// KindConversion makes LLM API calls and is subject to the
	// provider's rate limits.
	KindConversion Kind = "conversion"
)

// Task is the unit of queued work.
type Task interface {
	ID() string
	Name() string
	Kind() Kind
	// Execute runs the task. The enqueuer lets a task schedule
	// follow-up work (an analysis task enqueueing per-chunk
	// conversions, for example).
	Execute(ctx context.Context, enqueuer Enqueuer) error
}

// Enqueuer allows tasks to enqueue follow-up tasks.
type Enqueuer interface {
	Enqueue(task Task)
}

// BaseTask provides ID, name, and kind plumbing for concrete tasks.
type BaseTask struct {
	id   string
	name string
	kind Kind
}

// NewBaseTask creates a base task with a fresh ID.
func NewBaseTask(name string, kind Kind) BaseTask {
	return BaseTask{id: uuid.New().String(), name: name, kind: kind}
}

func (t BaseTask) ID() string   { return t.id }
func (t BaseTask) Name() string { return t.name }
func (t BaseTask) Kind() Kind   { return t.kind }

// taskState holds the runtime state of one queued task.
type taskState struct {
	task Task

	mu          sync.RWMutex
	status      Status
	startedAt   *time.Time
	completedAt *time.Time
	retries     int
	err         error
}

func newTaskState(task Task) *taskState {
	return &taskState{task: task, status: StatusPending}
}

func (ts *taskState) getStatus() Status {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.status
}

func (ts *taskState) setStatus(status Status) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status = status
	now := time.Now()
	switch status {
	case StatusRunning:
		ts.startedAt = &now
	case StatusCompleted, StatusFailed, StatusCancelled:
		ts.completedAt = &now
	}
}

func (ts *taskState) setError(err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.err = err
}

func (ts *taskState) getError() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.err
}

func (ts *taskState) incrementRetries() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.retries++
	return ts.retries
}

func (ts *taskState) snapshot() Snapshot {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	var errMsg string
	if ts.err != nil {
		errMsg = ts.err.Error()
	}
	return Snapshot{
		ID:          ts.task.ID(),
		Name:        ts.task.Name(),
		Kind:        ts.task.Kind(),
		Status:      ts.status,
		Retries:     ts.retries,
		StartedAt:   ts.startedAt,
		CompletedAt: ts.completedAt,
		Error:       errMsg,
	}
}

// Snapshot is an immutable view of task state for serialization.
type Snapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Retries     int        `json:"retries,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
