package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/recruitflow/pkg/channels/gochannel"
	"github.com/dukex/recruitflow/pkg/channels/kafka"
	"github.com/dukex/recruitflow/pkg/config"
	"github.com/dukex/recruitflow/pkg/eventbus"
)

// NewEventBus connects the transport named by cfg.EventBus.
func NewEventBus(cfg config.Engine, logger *slog.Logger) (eventbus.EventBus, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch cfg.EventBus {
	case config.EventBusGoChannel:
		pub, sub, err := gochannel.CreateChannel(adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case config.EventBusKafka:
		pub, sub, err := kafka.CreateChannel(adapter, cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", cfg.EventBus)
	}
}
