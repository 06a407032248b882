package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowmark/journey/pkg/eventbus"
	"github.com/flowmark/journey/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.GetType())
	}

	return types
}

func newTestQueue(t *testing.T, opts ...Option) (*Queue, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	q := New("test", store, opts...)

	t.Cleanup(func() {
		_ = q.Close()
	})

	return q, store
}

func startWorkers(t *testing.T, q *Queue, handler Handler) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = q.Process(ctx, handler)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForState(t *testing.T, q *Queue, id string, state State) *Job {
	t.Helper()

	var job *Job

	require.Eventually(t, func() bool {
		var err error

		job, err = q.GetJob(context.Background(), id)

		return err == nil && job.State == state
	}, 5*time.Second, 10*time.Millisecond)

	return job
}

func TestQueue_AddAndGetJob(t *testing.T) {
	q, store := newTestQueue(t)

	job, err := q.Add(context.Background(), "process-workflow", map[string]any{"id": "wf-1"}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StateWaiting, job.State)
	assert.Equal(t, DefaultAttempts, job.Opts.Attempts)
	assert.Equal(t, 1, store.Waiting())

	loaded, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "process-workflow", loaded.Name)
	assert.JSONEq(t, `{"id":"wf-1"}`, string(loaded.Data))

	_, err = q.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, ErrJobNotFound)
	assert.True(t, IsJobNotFound(err))
}

func TestQueue_Process_Completes(t *testing.T) {
	publisher := &recordingPublisher{}
	q, _ := newTestQueue(t, WithPublisher(publisher), WithConcurrency(2))

	startWorkers(t, q, func(_ context.Context, job *Job) (any, error) {
		var payload map[string]string
		if err := job.Decode(&payload); err != nil {
			return nil, err
		}

		return map[string]any{"success": true, "echo": payload["id"]}, nil
	})

	job, err := q.Add(context.Background(), "process-workflow", map[string]string{"id": "wf-1"}, nil)
	require.NoError(t, err)

	done := waitForState(t, q, job.ID, StateCompleted)
	assert.Equal(t, 1, done.AttemptsMade)
	assert.NotNil(t, done.ProcessedOn)
	assert.NotNil(t, done.FinishedOn)
	assert.JSONEq(t, `{"success":true,"echo":"wf-1"}`, string(done.ReturnValue))

	require.Eventually(t, func() bool {
		return len(publisher.types()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.EventType{events.JobCompletedEvent}, publisher.types())
}

func TestQueue_Process_RetriesThenSucceeds(t *testing.T) {
	q, _ := newTestQueue(t)

	var calls atomic.Int32

	startWorkers(t, q, func(context.Context, *Job) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("temporary")
		}

		return "ok", nil
	})

	job, err := q.Add(context.Background(), "flaky", nil, &JobOptions{Attempts: 3, Backoff: 10 * time.Millisecond})
	require.NoError(t, err)

	done := waitForState(t, q, job.ID, StateCompleted)
	assert.Equal(t, 2, done.AttemptsMade)
	assert.Empty(t, done.FailedReason)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueue_Process_FailsAfterAttempts(t *testing.T) {
	publisher := &recordingPublisher{}
	q, _ := newTestQueue(t, WithPublisher(publisher), WithRetry(2, 5*time.Millisecond))

	startWorkers(t, q, func(context.Context, *Job) (any, error) {
		return nil, errors.New("workflow fetch failed")
	})

	job, err := q.Add(context.Background(), "process-workflow", nil, nil)
	require.NoError(t, err)

	failed := waitForState(t, q, job.ID, StateFailed)
	assert.Equal(t, 2, failed.AttemptsMade)
	assert.Equal(t, "workflow fetch failed", failed.FailedReason)
	assert.NotNil(t, failed.FinishedOn)

	require.Eventually(t, func() bool {
		return len(publisher.types()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.EventType{events.JobFailedEvent}, publisher.types())
}

func TestQueue_Process_RecoversPanics(t *testing.T) {
	q, _ := newTestQueue(t)

	startWorkers(t, q, func(context.Context, *Job) (any, error) {
		panic("boom")
	})

	job, err := q.Add(context.Background(), "explode", nil, nil)
	require.NoError(t, err)

	failed := waitForState(t, q, job.ID, StateFailed)
	assert.Contains(t, failed.FailedReason, "panicked: boom")
}

// contextStore rejects writes on a done context like a network store does.
type contextStore struct {
	*MemoryStore
}

func (s contextStore) Save(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.MemoryStore.Save(ctx, job)
}

func TestQueue_Process_RecordsOutcomeAfterCancel(t *testing.T) {
	publisher := &recordingPublisher{}
	q := New("test", contextStore{NewMemoryStore()}, WithPublisher(publisher))

	t.Cleanup(func() {
		_ = q.Close()
	})

	job, err := q.Add(context.Background(), "slow", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		_ = q.Process(ctx, func(hctx context.Context, _ *Job) (any, error) {
			close(started)
			<-hctx.Done()

			return nil, hctx.Err()
		})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not picked up")
	}

	cancel()
	<-stopped

	failed, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, failed.State)
	assert.Contains(t, failed.FailedReason, context.Canceled.Error())
	assert.NotNil(t, failed.FinishedOn)
	assert.Equal(t, []events.EventType{events.JobFailedEvent}, publisher.types())
}

func TestJob_UpdateProgress(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Add(context.Background(), "progress", nil, nil)
	require.NoError(t, err)

	loaded, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.UpdateProgress(context.Background(), 150))

	reloaded, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, reloaded.Progress)
}

func TestQueue_RepeatableJob(t *testing.T) {
	q, store := newTestQueue(t)

	// Sunday 2024-06-02 12:00 UTC
	q.now = func() time.Time { return time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC) }

	job, err := q.Add(context.Background(), "process-cron-workflow", map[string]string{"id": "wf-1"}, &JobOptions{
		Repeat: &RepeatOptions{Pattern: "0 9 * * 1", TZ: "America/New_York"},
	})
	require.NoError(t, err)

	assert.Equal(t, StateDelayed, job.State)
	assert.NotEmpty(t, job.RepeatKey)
	require.NotNil(t, job.DelayUntil)

	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 0, 0, 0, newYork).UTC(), job.DelayUntil.UTC())
	assert.Equal(t, 0, store.Waiting())
	assert.Equal(t, []string{job.RepeatKey}, q.Repeatables())

	schedule, err := parseRepeat(job.Opts.Repeat)
	require.NoError(t, err)

	q.tick(job.RepeatKey, schedule)

	promoted, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, promoted.State)
	assert.Equal(t, 1, store.Waiting())

	q.mu.Lock()
	nextID := q.repeats[job.RepeatKey].next
	q.mu.Unlock()

	assert.NotEqual(t, job.ID, nextID)

	next, err := q.GetJob(context.Background(), nextID)
	require.NoError(t, err)
	assert.Equal(t, StateDelayed, next.State)
	assert.Equal(t, "process-cron-workflow", next.Name)

	assert.True(t, q.RemoveRepeatable(job.RepeatKey))
	assert.False(t, q.RemoveRepeatable(job.RepeatKey))
	assert.Empty(t, q.Repeatables())
}

func TestQueue_RepeatableJob_InvalidPattern(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Add(context.Background(), "cron", nil, &JobOptions{
		Repeat: &RepeatOptions{Pattern: "not a cron"},
	})
	require.ErrorIs(t, err, ErrInvalidRepeat)

	_, err = q.Add(context.Background(), "cron", nil, &JobOptions{
		Repeat: &RepeatOptions{Pattern: "0 9 * * 1", TZ: "Mars/Olympus"},
	})
	require.ErrorIs(t, err, ErrInvalidRepeat)
}

func TestQueue_Close(t *testing.T) {
	q, _ := newTestQueue(t)

	require.NoError(t, q.Ping(context.Background()))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err := q.Add(context.Background(), "late", nil, nil)
	require.ErrorIs(t, err, ErrQueueClosed)
	require.ErrorIs(t, q.Ping(context.Background()), ErrQueueClosed)
	require.ErrorIs(t, q.Process(context.Background(), nil), ErrQueueClosed)
}
