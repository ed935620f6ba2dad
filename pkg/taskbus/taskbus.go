// Package taskbus carries task requests and results between masters and
// slave pools over an asynchronous publish/subscribe transport.
package taskbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/askgraph/askgraph/pkg/models"
)

// Topic layout: one task topic per pool, one shared results topic.
const (
	TaskTopicPrefix = "askgraph.tasks."
	ResultsTopic    = "askgraph.results"
)

const (
	CorrelationMetadataKey = "correlation_id"
	WorkflowMetadataKey    = "workflow_id"
	CapabilityMetadataKey  = "capability"
)

// TaskHandler consumes one task from a pool topic. A non-nil error nacks the
// message for redelivery.
type TaskHandler func(ctx context.Context, task models.Task) error

// ResultHandler consumes one task result from the results topic.
type ResultHandler func(ctx context.Context, result models.TaskResult) error

// TaskBus is the transport between domain masters and slave pools. Pools may
// run in-process (gochannel) or out-of-process (kafka) behind the same
// contract.
type TaskBus interface {
	GenerateID() string
	PublishTask(ctx context.Context, pool string, task models.Task) error
	PublishResult(ctx context.Context, result models.TaskResult) error
	SubscribeTasks(ctx context.Context, pool string, handler TaskHandler) error
	SubscribeResults(ctx context.Context, handler ResultHandler) error
	Close() error
}

// TaskTopic returns the task topic for a pool.
func TaskTopic(pool string) string {
	return TaskTopicPrefix + pool
}

type WatermillTaskBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func NewWatermillTaskBus(pub message.Publisher, sub message.Subscriber) TaskBus {
	return &WatermillTaskBus{
		publisher:  pub,
		subscriber: sub,
	}
}

func (b *WatermillTaskBus) GenerateID() string {
	return watermill.NewULID()
}

func (b *WatermillTaskBus) PublishTask(ctx context.Context, pool string, task models.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+b.GenerateID(), payload)
	msg.Metadata.Set(CorrelationMetadataKey, task.CorrelationID)
	msg.Metadata.Set(WorkflowMetadataKey, task.WorkflowID)
	msg.Metadata.Set(CapabilityMetadataKey, task.Capability)

	return b.publisher.Publish(TaskTopic(pool), msg)
}

func (b *WatermillTaskBus) PublishResult(ctx context.Context, result models.TaskResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+b.GenerateID(), payload)
	msg.Metadata.Set(CorrelationMetadataKey, result.CorrelationID)
	msg.Metadata.Set(WorkflowMetadataKey, result.WorkflowID)

	return b.publisher.Publish(ResultsTopic, msg)
}

func (b *WatermillTaskBus) SubscribeTasks(ctx context.Context, pool string, handler TaskHandler) error {
	messages, err := b.subscriber.Subscribe(ctx, TaskTopic(pool))
	if err != nil {
		return err
	}

	// Messages are handled sequentially so that tasks from the same workflow
	// routed to the same worker keep their submission order.
	go func() {
		for msg := range messages {
			var task models.Task

			err := json.Unmarshal(msg.Payload, &task)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, task)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (b *WatermillTaskBus) SubscribeResults(ctx context.Context, handler ResultHandler) error {
	messages, err := b.subscriber.Subscribe(ctx, ResultsTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var result models.TaskResult

			err := json.Unmarshal(msg.Payload, &result)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, result)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (b *WatermillTaskBus) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}
