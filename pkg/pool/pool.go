// Package pool runs registered capability instances against a pool's task
// topic, decoupling task producers from consumers.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/otelhelper"
	"github.com/askgraph/askgraph/pkg/registry"
	"github.com/askgraph/askgraph/pkg/taskbus"
)

// Pool consumes tasks addressed to one named pool and publishes their
// results. One Pool instance is one worker: it processes its topic
// sequentially, which preserves submission order for tasks of the same
// workflow routed to it.
type Pool struct {
	name         string
	workerID     string
	bus          taskbus.TaskBus
	registry     *registry.Registry
	logger       *slog.Logger
	tracer       trace.Tracer
	capabilities map[string]capability.Capability
}

func NewPool(name, workerID string, bus taskbus.TaskBus, reg *registry.Registry, logger *slog.Logger) *Pool {
	return &Pool{
		name:     name,
		workerID: workerID,
		bus:      bus,
		registry: reg,
		logger: logger.With(
			"module", "pool",
			"pool", name,
			"worker_id", workerID,
		),
		tracer:       otel.Tracer("github.com/askgraph/askgraph/pkg/pool"),
		capabilities: make(map[string]capability.Capability),
	}
}

// Start instantiates every capability registered for this pool and begins
// consuming tasks.
func (p *Pool) Start(ctx context.Context) error {
	for _, name := range p.registry.CapabilitiesIn(p.name) {
		instance, err := p.registry.Create(name, map[string]any{"pool": p.name})
		if err != nil {
			return fmt.Errorf("failed to create capability %s: %w", name, err)
		}

		p.capabilities[name] = instance
	}

	p.logger.Info("Slave pool starting", "capabilities", len(p.capabilities))

	return p.bus.SubscribeTasks(ctx, p.name, p.handle)
}

func (p *Pool) handle(ctx context.Context, task models.Task) error {
	logger := p.logger.With(
		"task_id", task.ID,
		"workflow_id", task.WorkflowID,
		"capability", task.Capability,
	)

	instance, ok := p.capabilities[task.Capability]
	if !ok {
		logger.Error("No capability registered for task")

		return p.publishFailure(ctx, task, capability.NewPermanent(
			fmt.Sprintf("capability '%s' not available in pool '%s'", task.Capability, p.name), nil), 0)
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCtx, span := otelhelper.StartSpan(execCtx, p.tracer, "task.execute",
		attribute.String(otelhelper.WorkflowIDKey, task.WorkflowID),
		attribute.String(otelhelper.TaskIDKey, task.ID),
		attribute.String(otelhelper.CapabilityKey, task.Capability),
		attribute.String(otelhelper.PoolKey, p.name),
		attribute.String(otelhelper.WorkerIDKey, p.workerID),
	)
	defer span.End()

	started := time.Now()
	output, err := instance.Execute(execCtx, capability.Input(task.Input), logger)
	duration := time.Since(started)

	if err != nil {
		if execCtx.Err() != nil {
			err = capability.NewTransient("capability execution timed out", err)
		}

		otelhelper.SetError(span, err,
			attribute.String(otelhelper.CapabilityKey, task.Capability))
		logger.Error("Capability execution failed", "error", err, "duration", duration)

		return p.publishFailure(ctx, task, err, duration)
	}

	logger.Debug("Capability execution succeeded", "duration", duration)

	return p.bus.PublishResult(ctx, models.TaskResult{
		TaskID:        task.ID,
		CorrelationID: task.CorrelationID,
		WorkflowID:    task.WorkflowID,
		Success:       true,
		Output:        output,
		Duration:      duration,
	})
}

func (p *Pool) publishFailure(ctx context.Context, task models.Task, err error, duration time.Duration) error {
	return p.bus.PublishResult(ctx, models.TaskResult{
		TaskID:        task.ID,
		CorrelationID: task.CorrelationID,
		WorkflowID:    task.WorkflowID,
		Success:       false,
		ErrorKind:     string(capability.KindOf(err)),
		ErrorMessage:  err.Error(),
		Duration:      duration,
	})
}
