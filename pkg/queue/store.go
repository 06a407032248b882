package queue

import (
	"context"
	"time"
)

// Store persists jobs and the list of job IDs waiting to be processed.
type Store interface {
	Save(ctx context.Context, job *Job) error
	// Get returns ErrJobNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Job, error)
	Push(ctx context.Context, id string) error
	// Pop blocks up to timeout for a waiting job ID. It returns "" when none arrived.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Ping(ctx context.Context) error
	Close() error
}
