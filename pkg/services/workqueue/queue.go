package workqueue

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/llm"
)

// RetryConfig configures retry behavior for failed tasks.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default retry schedule:
// 2s, 4s, 8s, 16s, then capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     8,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Queue manages task execution with configurable concurrency control.
// Conversion tasks retry on transient LLM errors; analysis tasks are
// local and fail fast.
type Queue struct {
	mu        sync.Mutex
	tasks     []*taskState
	cancelled bool

	strategy    ConcurrencyStrategy
	retryConfig RetryConfig

	done chan struct{}
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	onUpdate func([]Snapshot)

	logger *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) Option {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(config RetryConfig) Option {
	return func(q *Queue) {
		q.retryConfig = config
	}
}

// New creates a work queue. With no options it serializes each task
// kind and uses the default retry schedule.
func New(logger *zap.Logger, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		strategy:    NewSerializedStrategy(),
		retryConfig: DefaultRetryConfig(),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("workqueue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetOnUpdate sets the callback invoked on task state changes.
//
// The callback runs while the queue's lock is held. Do not call Queue
// methods from inside it; keep it fast and non-blocking.
func (q *Queue) SetOnUpdate(callback func([]Snapshot)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onUpdate = callback
}

// Enqueue adds a task and starts eligible tasks.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		q.logger.Warn("queue cancelled, ignoring enqueue",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return
	}

	q.resetDoneLocked()

	q.tasks = append(q.tasks, newTaskState(task))

	q.logger.Info("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.String("kind", string(task.Kind())))

	q.notifyUpdateLocked()
	q.tryStartTasksLocked()
}

// tryStartTasksLocked starts every pending task the strategy allows.
// Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.cancelled {
		return
	}

	for _, ts := range q.tasks {
		if ts.getStatus() != StatusPending {
			continue
		}

		kind := ts.task.Kind()
		if !q.strategy.CanStart(kind) {
			continue
		}
		q.strategy.OnStart(kind)

		ts.setStatus(StatusRunning)
		q.notifyUpdateLocked()

		q.logger.Info("starting task",
			zap.String("task_id", ts.task.ID()),
			zap.String("task_name", ts.task.Name()))

		q.wg.Add(1)
		go q.runTask(ts)
	}
}

// runTask executes a task with retry on transient errors. Only
// conversion tasks retry; analysis failures are deterministic.
func (q *Queue) runTask(ts *taskState) {
	defer q.wg.Done()

	maxRetries := q.retryConfig.MaxRetries
	if ts.task.Kind() != KindConversion {
		maxRetries = 0
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := q.calculateBackoff(attempt)
			q.logger.Info("retrying task after backoff",
				zap.String("task_id", ts.task.ID()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			select {
			case <-q.ctx.Done():
				q.completeTaskFailure(ts, q.ctx.Err())
				return
			case <-time.After(backoff):
			}
		}

		err := ts.task.Execute(q.ctx, q)
		if err == nil {
			q.completeTaskSuccess(ts)
			return
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			break
		}
		if !llm.IsRetryable(err) {
			q.logger.Warn("non-retryable error, failing task",
				zap.String("task_id", ts.task.ID()),
				zap.Error(err))
			break
		}

		retries := ts.incrementRetries()
		if attempt >= maxRetries {
			q.logger.Error("task failed after max retries",
				zap.String("task_id", ts.task.ID()),
				zap.Int("retries", retries),
				zap.Error(err))
			break
		}

		q.logger.Warn("retryable error encountered",
			zap.String("task_id", ts.task.ID()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	q.completeTaskFailure(ts, lastErr)
}

// calculateBackoff computes exponential backoff with jitter.
func (q *Queue) calculateBackoff(attempt int) time.Duration {
	backoff := float64(q.retryConfig.InitialBackoff) *
		math.Pow(q.retryConfig.BackoffFactor, float64(attempt-1))
	if backoff > float64(q.retryConfig.MaxBackoff) {
		backoff = float64(q.retryConfig.MaxBackoff)
	}
	jitter := backoff * 0.1 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}

func (q *Queue) completeTaskSuccess(ts *taskState) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete(ts.task.Kind())
	ts.setStatus(StatusCompleted)

	q.logger.Info("task completed",
		zap.String("task_id", ts.task.ID()),
		zap.String("task_name", ts.task.Name()))

	q.notifyUpdateLocked()
	q.finishOrContinueLocked()
}

func (q *Queue) completeTaskFailure(ts *taskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete(ts.task.Kind())

	if errors.Is(err, context.Canceled) {
		ts.setStatus(StatusCancelled)
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.task.ID()))
	} else {
		ts.setStatus(StatusFailed)
		ts.setError(err)
		q.logger.Error("task failed",
			zap.String("task_id", ts.task.ID()),
			zap.Error(err))
	}

	q.notifyUpdateLocked()
	q.finishOrContinueLocked()
}

func (q *Queue) finishOrContinueLocked() {
	if q.allTasksDoneLocked() {
		q.closeDoneLocked()
		return
	}
	q.tryStartTasksLocked()
}

func (q *Queue) allTasksDoneLocked() bool {
	for _, ts := range q.tasks {
		status := ts.getStatus()
		if status == StatusPending || status == StatusRunning {
			return false
		}
	}
	return true
}

func (q *Queue) closeDoneLocked() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// resetDoneLocked recreates the done channel if a previous batch closed
// it, so the queue can be reused.
func (q *Queue) resetDoneLocked() {
	select {
	case <-q.done:
		q.done = make(chan struct{})
	default:
	}
}

func (q *Queue) notifyUpdateLocked() {
	if q.onUpdate == nil {
		return
	}
	snapshots := make([]Snapshot, len(q.tasks))
	for i, ts := range q.tasks {
		snapshots[i] = ts.snapshot()
	}
	q.onUpdate(snapshots)
}

// Tasks returns a snapshot of all tasks.
func (q *Queue) Tasks() []Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshots := make([]Snapshot, len(q.tasks))
	for i, ts := range q.tasks {
		snapshots[i] = ts.snapshot()
	}
	return snapshots
}

// Wait blocks until all tasks reach a terminal state or ctx is
// cancelled. It returns the first task error, if any.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.mu.Lock()
		defer q.mu.Unlock()
		for _, ts := range q.tasks {
			if ts.getStatus() == StatusFailed {
				return ts.getError()
			}
		}
		return nil
	case <-ctx.Done():
		q.Cancel()
		return ctx.Err()
	}
}

// Cancel signals running tasks to stop and rejects further enqueues.
// Pending tasks move straight to cancelled.
func (q *Queue) Cancel() {
	q.mu.Lock()
	if q.cancelled {
		q.mu.Unlock()
		return
	}
	q.cancelled = true
	for _, ts := range q.tasks {
		if ts.getStatus() == StatusPending {
			ts.setStatus(StatusCancelled)
		}
	}
	q.notifyUpdateLocked()
	if q.allTasksDoneLocked() {
		q.closeDoneLocked()
	}
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
