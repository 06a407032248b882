package queue

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// RepeatOptions re-adds a job on every tick of a cron pattern evaluated in TZ.
type RepeatOptions struct {
	Pattern string `json:"pattern"`
	TZ      string `json:"tz,omitempty"`
}

// JobOptions controls retries and repetition. Zero values fall back to the queue defaults.
type JobOptions struct {
	Attempts int            `json:"attempts,omitempty"`
	Backoff  time.Duration  `json:"backoff,omitempty"`
	Repeat   *RepeatOptions `json:"repeat,omitempty"`
}

type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data"`
	Opts         JobOptions      `json:"opts"`
	State        State           `json:"state"`
	Progress     int             `json:"progress"`
	AttemptsMade int             `json:"attemptsMade"`
	ReturnValue  json.RawMessage `json:"returnValue,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	DelayUntil   *time.Time      `json:"delayUntil,omitempty"`
	ProcessedOn  *time.Time      `json:"processedOn,omitempty"`
	FinishedOn   *time.Time      `json:"finishedOn,omitempty"`
	RepeatKey    string          `json:"repeatKey,omitempty"`

	store Store
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Data, v)
}

// UpdateProgress stores the job progress, clamped to 0..100.
func (j *Job) UpdateProgress(ctx context.Context, progress int) error {
	j.Progress = min(max(progress, 0), 100)

	if j.store == nil {
		return nil
	}

	return j.store.Save(ctx, j)
}
