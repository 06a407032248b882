package cmd

import (
	"context"
	"log/slog"

	"github.com/flowmark/journey/pkg/config"
	"github.com/flowmark/journey/pkg/eventbus"
	"github.com/flowmark/journey/pkg/queue"
	"go.opentelemetry.io/otel/trace"
)

// NewQueue creates the job queue on the configured store.
func NewQueue(
	ctx context.Context,
	cfg config.QueueConfig,
	logger *slog.Logger,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
) (*queue.Queue, error) {
	var store queue.Store

	switch cfg.Provider {
	case config.QueueProviderRedis:
		client, err := queue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		store = queue.NewRedisStore(client, cfg.Name)
	default:
		store = queue.NewMemoryStore()
	}

	opts := []queue.Option{
		queue.WithLogger(logger),
		queue.WithConcurrency(cfg.Concurrency),
		queue.WithRetry(cfg.Attempts, cfg.Backoff),
	}

	if publisher != nil {
		opts = append(opts, queue.WithPublisher(publisher))
	}

	if tracer != nil {
		opts = append(opts, queue.WithTracer(tracer))
	}

	return queue.New(cfg.Name, store, opts...), nil
}
