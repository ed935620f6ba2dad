package taskbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

// Dispatcher is a synchronous facade over the asynchronous task exchange: it
// publishes a task and awaits the correlated result, enforcing the per-task
// timeout. A result arriving after its waiter gave up finds no pending entry
// and is discarded as a no-op.
type Dispatcher struct {
	bus    TaskBus
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan models.TaskResult
}

func NewDispatcher(bus TaskBus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		bus:     bus,
		logger:  logger.With("module", "dispatcher"),
		pending: make(map[string]chan models.TaskResult),
	}
}

// Start subscribes the dispatcher to the results topic. Must be called once
// before any Dispatch.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.bus.SubscribeResults(ctx, d.deliver)
}

func (d *Dispatcher) deliver(_ context.Context, result models.TaskResult) error {
	d.mu.Lock()
	waiter, ok := d.pending[result.CorrelationID]

	if ok {
		delete(d.pending, result.CorrelationID)
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("Discarding late task result",
			"task_id", result.TaskID,
			"workflow_id", result.WorkflowID)

		return nil
	}

	waiter <- result

	return nil
}

// Dispatch publishes the task to its pool and blocks until the correlated
// result arrives, the task timeout elapses, or the context is done. Other
// dispatchers and other workflows proceed independently while one dispatch
// waits.
func (d *Dispatcher) Dispatch(ctx context.Context, pool string, task models.Task) (models.TaskResult, error) {
	if task.CorrelationID == "" {
		task.CorrelationID = d.bus.GenerateID()
	}

	waiter := make(chan models.TaskResult, 1)

	d.mu.Lock()
	d.pending[task.CorrelationID] = waiter
	d.mu.Unlock()

	err := d.bus.PublishTask(ctx, pool, task)
	if err != nil {
		d.forget(task.CorrelationID)

		return models.TaskResult{}, fmt.Errorf("failed to publish task %s: %w", task.ID, err)
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-waiter:
		return result, nil
	case <-timer.C:
		d.forget(task.CorrelationID)

		return models.TaskResult{}, capability.NewTransient(
			fmt.Sprintf("task %s timed out after %s", task.ID, timeout), nil)
	case <-ctx.Done():
		d.forget(task.CorrelationID)

		return models.TaskResult{}, ctx.Err()
	}
}

func (d *Dispatcher) forget(correlationID string) {
	d.mu.Lock()
	delete(d.pending, correlationID)
	d.mu.Unlock()
}
