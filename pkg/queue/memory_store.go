package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps jobs in process memory. It is used by tests and single-node setups.
type MemoryStore struct {
	mu     sync.Mutex
	jobs   map[string]Job
	wait   []string
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]Job),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *MemoryStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = *job

	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	return &job, nil
}

func (s *MemoryStore) Push(_ context.Context, id string) error {
	select {
	case <-s.done:
		return ErrQueueClosed
	default:
	}

	s.mu.Lock()
	s.wait = append(s.wait, id)
	s.mu.Unlock()

	s.signal()

	return nil
}

func (s *MemoryStore) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if len(s.wait) > 0 {
			id := s.wait[0]
			s.wait = s.wait[1:]
			more := len(s.wait) > 0
			s.mu.Unlock()

			if more {
				s.signal()
			}

			return id, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-timer.C:
			return "", nil
		case <-s.done:
			return "", ErrQueueClosed
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Waiting returns the number of queued job IDs.
func (s *MemoryStore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.wait)
}

func (s *MemoryStore) Ping(context.Context) error {
	select {
	case <-s.done:
		return ErrQueueClosed
	default:
		return nil
	}
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.done)
	})

	return nil
}

func (s *MemoryStore) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
