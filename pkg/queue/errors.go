package queue

import "errors"

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrUnknownJobName = errors.New("unknown job name")
	ErrQueueClosed    = errors.New("queue closed")
	ErrInvalidRepeat  = errors.New("invalid repeat options")
)

func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
