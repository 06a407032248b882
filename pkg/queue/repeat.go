package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type repeatEntry struct {
	entryID  cron.EntryID
	template Job
	next     string
}

// repeatSpec builds the robfig/cron spec for a repeat policy, e.g. "CRON_TZ=UTC 0 9 * * 1".
func repeatSpec(opts *RepeatOptions) string {
	tz := strings.TrimSpace(opts.TZ)
	if tz == "" {
		tz = "UTC"
	}

	return "CRON_TZ=" + tz + " " + strings.TrimSpace(opts.Pattern)
}

func parseRepeat(opts *RepeatOptions) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(repeatSpec(opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepeat, err)
	}

	return schedule, nil
}

func (q *Queue) addRepeatable(ctx context.Context, job *Job) (*Job, error) {
	schedule, err := parseRepeat(job.Opts.Repeat)
	if err != nil {
		return nil, err
	}

	job.RepeatKey = "repeat:" + job.Name + ":" + job.ID

	nextRun := schedule.Next(q.now())
	job.State = StateDelayed
	job.DelayUntil = &nextRun

	if err := q.store.Save(ctx, job); err != nil {
		return nil, err
	}

	entry := &repeatEntry{template: *job, next: job.ID}

	q.mu.Lock()
	entry.entryID = q.cron.Schedule(schedule, cron.FuncJob(func() {
		q.tick(job.RepeatKey, schedule)
	}))
	q.repeats[job.RepeatKey] = entry
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "Repeatable job registered",
		"job_id", job.ID,
		"job_name", job.Name,
		"pattern", job.Opts.Repeat.Pattern,
		"tz", job.Opts.Repeat.TZ,
		"next_run", nextRun,
	)

	return job, nil
}

// tick promotes the pending occurrence and stores the delayed job for the following tick.
func (q *Queue) tick(key string, schedule cron.Schedule) {
	ctx := context.Background()

	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.repeats[key]
	if !ok || q.isClosed() {
		return
	}

	if err := q.promote(ctx, entry.next); err != nil {
		q.logger.ErrorContext(ctx, "Failed to promote repeatable job", "repeat_key", key, "job_id", entry.next, "error", err)
	}

	next := entry.template
	next.ID = uuid.New().String()
	next.Timestamp = q.now()

	nextRun := schedule.Next(next.Timestamp)
	next.DelayUntil = &nextRun

	if err := q.store.Save(ctx, &next); err != nil {
		q.logger.ErrorContext(ctx, "Failed to store next repeatable job", "repeat_key", key, "error", err)

		return
	}

	entry.next = next.ID
}

// RemoveRepeatable stops the repeat policy registered under key.
func (q *Queue) RemoveRepeatable(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.repeats[key]
	if !ok {
		return false
	}

	q.cron.Remove(entry.entryID)
	delete(q.repeats, key)

	return true
}

// Repeatables returns the keys of the registered repeat policies.
func (q *Queue) Repeatables() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys := make([]string, 0, len(q.repeats))
	for key := range q.repeats {
		keys = append(keys, key)
	}

	return keys
}
