// Package queue runs named jobs on a pool of workers backed by a Store.
//
// Jobs move waiting → active → completed|failed. Failed handlers are retried up to
// JobOptions.Attempts with a fixed backoff. Jobs added with RepeatOptions are
// re-added by a cron scheduler on every tick; between ticks the next occurrence
// sits in the store as a delayed job.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowmark/journey/pkg/eventbus"
	"github.com/flowmark/journey/pkg/events"
	"github.com/flowmark/journey/pkg/otelhelper"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultConcurrency = 1
	DefaultAttempts    = 1
	DefaultBackoff     = time.Second

	pollTimeout = time.Second
)

// Handler processes a job. The returned value is stored as the job's return value.
type Handler func(ctx context.Context, job *Job) (any, error)

type Queue struct {
	name        string
	store       Store
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
	attempts    int
	backoff     time.Duration
	now         func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	repeats map[string]*repeatEntry
	done    chan struct{}
	once    sync.Once
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(q *Queue) {
		q.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(q *Queue) {
		q.tracer = tracer
	}
}

func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithRetry sets the default attempts and backoff for jobs that do not set their own.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(q *Queue) {
		if attempts > 0 {
			q.attempts = attempts
		}

		if backoff >= 0 {
			q.backoff = backoff
		}
	}
}

func New(name string, store Store, opts ...Option) *Queue {
	q := &Queue{
		name:        name,
		store:       store,
		logger:      slog.Default(),
		tracer:      otelhelper.Tracer("github.com/flowmark/journey/pkg/queue"),
		concurrency: DefaultConcurrency,
		attempts:    DefaultAttempts,
		backoff:     DefaultBackoff,
		now:         time.Now,
		repeats:     make(map[string]*repeatEntry),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	q.logger = q.logger.With("module", "queue", "queue", name)
	q.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	q.cron.Start()

	return q
}

func (q *Queue) Name() string {
	return q.name
}

// Add stores a job and makes it available to workers. Jobs with Repeat options are
// stored as delayed and become waiting on each cron tick.
func (q *Queue) Add(ctx context.Context, name string, data any, opts *JobOptions) (*Job, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job data: %w", err)
	}

	job := q.newJob(name, payload, opts)

	if job.Opts.Repeat != nil {
		return q.addRepeatable(ctx, job)
	}

	if err := q.store.Save(ctx, job); err != nil {
		return nil, err
	}

	if err := q.store.Push(ctx, job.ID); err != nil {
		return nil, err
	}

	q.logger.InfoContext(ctx, "Job added", "job_id", job.ID, "job_name", name)

	return job, nil
}

func (q *Queue) newJob(name string, payload json.RawMessage, opts *JobOptions) *Job {
	jobOpts := JobOptions{}
	if opts != nil {
		jobOpts = *opts
	}

	if jobOpts.Attempts <= 0 {
		jobOpts.Attempts = q.attempts
	}

	if jobOpts.Backoff <= 0 {
		jobOpts.Backoff = q.backoff
	}

	return &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Data:      payload,
		Opts:      jobOpts,
		State:     StateWaiting,
		Timestamp: q.now(),
	}
}

// GetJob returns the job with the given ID or ErrJobNotFound.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	job.store = q.store

	return job, nil
}

// Process runs handler on the configured number of workers until ctx is done or the queue is closed.
func (q *Queue) Process(ctx context.Context, handler Handler) error {
	if q.isClosed() {
		return ErrQueueClosed
	}

	q.logger.InfoContext(ctx, "Starting workers", "concurrency", q.concurrency)

	var wg sync.WaitGroup

	for i := range q.concurrency {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			q.work(ctx, worker, handler)
		}(i)
	}

	wg.Wait()

	q.logger.InfoContext(ctx, "Workers stopped")

	return nil
}

func (q *Queue) work(ctx context.Context, worker int, handler Handler) {
	logger := q.logger.With("worker", worker)

	for {
		if ctx.Err() != nil || q.isClosed() {
			return
		}

		id, err := q.store.Pop(ctx, pollTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}

			logger.ErrorContext(ctx, "Error fetching job", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			case <-time.After(time.Second):
			}

			continue
		}

		if id == "" {
			continue
		}

		q.run(ctx, logger, id, handler)
	}
}

func (q *Queue) run(ctx context.Context, logger *slog.Logger, id string, handler Handler) {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load job", "job_id", id, "error", err)

		return
	}

	ctx, span := otelhelper.StartSpan(ctx, q.tracer, "queue.process",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.JobNameKey, job.Name),
	)
	defer span.End()

	logger = logger.With("job_id", job.ID, "job_name", job.Name)

	processedOn := q.now()
	job.State = StateActive
	job.ProcessedOn = &processedOn
	job.AttemptsMade++

	if err := q.store.Save(ctx, job); err != nil {
		logger.ErrorContext(ctx, "Failed to mark job active", "error", err)

		return
	}

	logger.InfoContext(ctx, "Processing job", "attempt", job.AttemptsMade)

	result, err := invoke(ctx, handler, job)

	// the outcome is recorded even when shutdown cancelled the handler
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		otelhelper.SetError(span, err)
		q.fail(ctx, logger, job, err)

		return
	}

	q.complete(ctx, logger, job, result)
}

func invoke(ctx context.Context, handler Handler, job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	return handler(ctx, job)
}

func (q *Queue) complete(ctx context.Context, logger *slog.Logger, job *Job, result any) {
	payload, err := json.Marshal(result)
	if err != nil {
		q.fail(ctx, logger, job, fmt.Errorf("failed to encode job result: %w", err))

		return
	}

	finishedOn := q.now()
	job.State = StateCompleted
	job.ReturnValue = payload
	job.FailedReason = ""
	job.FinishedOn = &finishedOn

	if err := q.store.Save(ctx, job); err != nil {
		logger.ErrorContext(ctx, "Failed to save completed job", "error", err)

		return
	}

	logger.InfoContext(ctx, "Job completed", "duration", finishedOn.Sub(*job.ProcessedOn))

	var resultMap map[string]any
	_ = json.Unmarshal(payload, &resultMap)

	q.publish(ctx, job.ID, events.JobCompleted{
		BaseEvent:    events.NewBaseEvent(events.JobCompletedEvent, ""),
		JobID:        job.ID,
		JobName:      job.Name,
		AttemptsMade: job.AttemptsMade,
		Duration:     finishedOn.Sub(*job.ProcessedOn),
		Result:       resultMap,
	})
}

func (q *Queue) fail(ctx context.Context, logger *slog.Logger, job *Job, cause error) {
	job.FailedReason = cause.Error()

	if job.AttemptsMade < job.Opts.Attempts {
		job.State = StateDelayed
		retryAt := q.now().Add(job.Opts.Backoff)
		job.DelayUntil = &retryAt

		if err := q.store.Save(ctx, job); err != nil {
			logger.ErrorContext(ctx, "Failed to save job for retry", "error", err)

			return
		}

		logger.WarnContext(ctx, "Job failed, retrying",
			"error", cause,
			"attempt", job.AttemptsMade,
			"attempts", job.Opts.Attempts,
			"backoff", job.Opts.Backoff,
		)

		go q.retryAfter(job.ID, job.Opts.Backoff)

		return
	}

	finishedOn := q.now()
	job.State = StateFailed
	job.FinishedOn = &finishedOn

	if err := q.store.Save(ctx, job); err != nil {
		logger.ErrorContext(ctx, "Failed to save failed job", "error", err)

		return
	}

	logger.ErrorContext(ctx, "Job failed", "error", cause, "attempts", job.AttemptsMade)

	q.publish(ctx, job.ID, events.JobFailed{
		BaseEvent:    events.NewBaseEvent(events.JobFailedEvent, ""),
		JobID:        job.ID,
		JobName:      job.Name,
		AttemptsMade: job.AttemptsMade,
		Error:        cause.Error(),
	})
}

func (q *Queue) retryAfter(id string, backoff time.Duration) {
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-q.done:
		return
	case <-timer.C:
	}

	if err := q.promote(context.Background(), id); err != nil {
		q.logger.Error("Failed to requeue job", "job_id", id, "error", err)
	}
}

// promote moves a delayed job to waiting.
func (q *Queue) promote(ctx context.Context, id string) error {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}

	job.State = StateWaiting
	job.DelayUntil = nil

	if err := q.store.Save(ctx, job); err != nil {
		return err
	}

	return q.store.Push(ctx, job.ID)
}

func (q *Queue) publish(ctx context.Context, key string, event eventbus.Event) {
	if q.publisher == nil {
		return
	}

	if err := q.publisher.Publish(ctx, key, event); err != nil {
		q.logger.WarnContext(ctx, "Failed to publish job event", "event_type", event.GetType(), "error", err)
	}
}

// Ping reports whether the backing store is reachable.
func (q *Queue) Ping(ctx context.Context) error {
	if q.isClosed() {
		return ErrQueueClosed
	}

	return q.store.Ping(ctx)
}

// Close stops the repeat scheduler and the workers and closes the store.
func (q *Queue) Close() error {
	var err error

	q.once.Do(func() {
		close(q.done)
		<-q.cron.Stop().Done()
		err = q.store.Close()
	})

	return err
}

func (q *Queue) isClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
