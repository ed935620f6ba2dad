package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/askgraph/askgraph/pkg/channels/gochannel"
	"github.com/askgraph/askgraph/pkg/channels/kafka"
	"github.com/askgraph/askgraph/pkg/taskbus"
)

// NewTaskBus creates a task channel instance based on the provider. The
// gochannel provider is in-process only; every other deployment uses kafka.
func NewTaskBus(provider string, logger *slog.Logger) taskbus.TaskBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "askgraph")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return taskbus.NewWatermillTaskBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return taskbus.NewWatermillTaskBus(pub, sub)
	default:
		panic("Unsupported task channel provider: " + provider)
	}
}
