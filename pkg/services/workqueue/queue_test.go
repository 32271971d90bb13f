package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/llm"
)

// funcTask wraps a function as a Task for tests.
type funcTask struct {
	BaseTask
	fn func(ctx context.Context, enqueuer Enqueuer) error
}

func newFuncTask(name string, kind Kind, fn func(ctx context.Context, enqueuer Enqueuer) error) *funcTask {
	return &funcTask{BaseTask: NewBaseTask(name, kind), fn: fn}
}

func (t *funcTask) Execute(ctx context.Context, enqueuer Enqueuer) error {
	return t.fn(ctx, enqueuer)
}

func fastRetries(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:     max,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestQueue_RunsAllTasks(t *testing.T) {
	q := New(zap.NewNop())

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		q.Enqueue(newFuncTask("analyze", KindAnalysis, func(context.Context, Enqueuer) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Wait(context.Background()))
	assert.Equal(t, int32(5), count.Load())

	for _, s := range q.Tasks() {
		assert.Equal(t, StatusCompleted, s.Status)
	}
}

func TestQueue_SerializedStrategyNoOverlapPerKind(t *testing.T) {
	q := New(zap.NewNop())

	var running, maxRunning atomic.Int32
	for i := 0; i < 4; i++ {
		q.Enqueue(newFuncTask("convert", KindConversion, func(context.Context, Enqueuer) error {
			now := running.Add(1)
			for {
				prev := maxRunning.Load()
				if now <= prev || maxRunning.CompareAndSwap(prev, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	require.NoError(t, q.Wait(context.Background()))
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestQueue_ThrottledStrategyCapsConversions(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewThrottledStrategy(2)))

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 4; i++ {
		q.Enqueue(newFuncTask("convert", KindConversion, func(context.Context, Enqueuer) error {
			defer wg.Done()
			now := running.Add(1)
			for {
				prev := maxRunning.Load()
				if now <= prev || maxRunning.CompareAndSwap(prev, now) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	require.NoError(t, q.Wait(context.Background()))
	wg.Wait()
	assert.LessOrEqual(t, maxRunning.Load(), int32(2))
}

func TestQueue_RetriesTransientConversionErrors(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(fastRetries(5)))

	var attempts atomic.Int32
	q.Enqueue(newFuncTask("convert", KindConversion, func(context.Context, Enqueuer) error {
		if attempts.Add(1) < 3 {
			return &llm.Error{Type: llm.ErrorTypeRateLimit, Message: "slow down", Retryable: true}
		}
		return nil
	}))

	require.NoError(t, q.Wait(context.Background()))
	assert.Equal(t, int32(3), attempts.Load())

	snap := q.Tasks()[0]
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Retries)
}

func TestQueue_NonRetryableFailsImmediately(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(fastRetries(5)))

	var attempts atomic.Int32
	taskErr := errors.New("bad prompt")
	q.Enqueue(newFuncTask("convert", KindConversion, func(context.Context, Enqueuer) error {
		attempts.Add(1)
		return taskErr
	}))

	err := q.Wait(context.Background())
	assert.ErrorIs(t, err, taskErr)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, StatusFailed, q.Tasks()[0].Status)
}

func TestQueue_AnalysisTasksDoNotRetry(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(fastRetries(5)))

	var attempts atomic.Int32
	q.Enqueue(newFuncTask("analyze", KindAnalysis, func(context.Context, Enqueuer) error {
		attempts.Add(1)
		return &llm.Error{Type: llm.ErrorTypeRateLimit, Retryable: true}
	}))

	require.Error(t, q.Wait(context.Background()))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestQueue_TasksCanEnqueueFollowups(t *testing.T) {
	q := New(zap.NewNop())

	var converted atomic.Int32
	q.Enqueue(newFuncTask("analyze", KindAnalysis, func(_ context.Context, enqueuer Enqueuer) error {
		for i := 0; i < 3; i++ {
			enqueuer.Enqueue(newFuncTask("convert", KindConversion, func(context.Context, Enqueuer) error {
				converted.Add(1)
				return nil
			}))
		}
		return nil
	}))

	require.NoError(t, q.Wait(context.Background()))
	assert.Equal(t, int32(3), converted.Load())
	assert.Len(t, q.Tasks(), 4)
}

func TestQueue_Cancel(t *testing.T) {
	q := New(zap.NewNop())

	started := make(chan struct{})
	q.Enqueue(newFuncTask("convert", KindConversion, func(ctx context.Context, _ Enqueuer) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	q.Enqueue(newFuncTask("pending", KindConversion, func(context.Context, Enqueuer) error {
		return nil
	}))

	<-started
	q.Cancel()

	statuses := map[Status]int{}
	for _, s := range q.Tasks() {
		statuses[s.Status]++
	}
	assert.Equal(t, 2, statuses[StatusCancelled])

	// Enqueue after cancel is a no-op.
	q.Enqueue(newFuncTask("late", KindAnalysis, func(context.Context, Enqueuer) error { return nil }))
	assert.Len(t, q.Tasks(), 2)
}
