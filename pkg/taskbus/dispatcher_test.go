package taskbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/channels/gochannel"
	"github.com/askgraph/askgraph/pkg/log"
	"github.com/askgraph/askgraph/pkg/models"
)

func newTestBus(t *testing.T) TaskBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillTaskBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestDispatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)
	logger := log.WithModule("test")

	dispatcher := NewDispatcher(bus, logger)
	require.NoError(t, dispatcher.Start(ctx))

	// Echo worker: answers every task on the pool topic.
	err := bus.SubscribeTasks(ctx, "echo", func(ctx context.Context, task models.Task) error {
		return bus.PublishResult(ctx, models.TaskResult{
			TaskID:        task.ID,
			CorrelationID: task.CorrelationID,
			WorkflowID:    task.WorkflowID,
			Success:       true,
			Output:        map[string]any{"echo": task.Input["value"]},
		})
	})
	require.NoError(t, err)

	result, err := dispatcher.Dispatch(ctx, "echo", models.Task{
		ID:         "task-1",
		WorkflowID: "wf-1",
		Capability: "echo",
		Input:      map[string]any{"value": "hello"},
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Output["echo"])
}

func TestDispatchTimeoutIsTransient(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)

	dispatcher := NewDispatcher(bus, log.WithModule("test"))
	require.NoError(t, dispatcher.Start(ctx))

	// No worker subscribes, so the dispatch must time out.
	_, err := dispatcher.Dispatch(ctx, "silent", models.Task{
		ID:      "task-1",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, capability.IsTransient(err))
}

func TestDispatchHonorsContextCancellation(t *testing.T) {
	bus := newTestBus(t)

	dispatcher := NewDispatcher(bus, log.WithModule("test"))
	require.NoError(t, dispatcher.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := dispatcher.Dispatch(ctx, "silent", models.Task{
		ID:      "task-1",
		Timeout: 5 * time.Second,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLateResultIsDiscarded(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)

	dispatcher := NewDispatcher(bus, log.WithModule("test"))
	require.NoError(t, dispatcher.Start(ctx))

	// A result whose waiter already gave up must be dropped without error.
	err := bus.PublishResult(ctx, models.TaskResult{
		TaskID:        "task-late",
		CorrelationID: "corr-nobody-waits",
		WorkflowID:    "wf-1",
		Success:       true,
	})
	require.NoError(t, err)

	// Subsequent dispatches are unaffected.
	err = bus.SubscribeTasks(ctx, "echo", func(ctx context.Context, task models.Task) error {
		return bus.PublishResult(ctx, models.TaskResult{
			TaskID:        task.ID,
			CorrelationID: task.CorrelationID,
			Success:       true,
		})
	})
	require.NoError(t, err)

	result, err := dispatcher.Dispatch(ctx, "echo", models.Task{
		ID:      "task-2",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestTaskTopic(t *testing.T) {
	assert.Equal(t, "askgraph.tasks.understanding", TaskTopic("understanding"))
}
