package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/flowmark/journey/pkg/channels/gochannel"
	"github.com/flowmark/journey/pkg/channels/kafka"
	"github.com/flowmark/journey/pkg/config"
	"github.com/flowmark/journey/pkg/eventbus"
)

// NewEventBus creates the event bus for the configured provider.
func NewEventBus(cfg config.EventBusConfig, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Provider {
	case config.EventBusProviderKafka:
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(cfg.KafkaBrokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case config.EventBusProviderGoChannel:
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", cfg.Provider)
	}
}
