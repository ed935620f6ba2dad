// Package metrics exposes the workflow and task instruments consumed by an
// external monitoring collector.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/askgraph/askgraph"

type Metrics struct {
	workflowsStarted   metric.Int64Counter
	workflowsSucceeded metric.Int64Counter
	workflowsFailed    metric.Int64Counter
	workflowsCancelled metric.Int64Counter
	stageLatency       metric.Float64Histogram
	repairCycles       metric.Int64Counter
	tasksDispatched    metric.Int64Counter
	taskErrors         metric.Int64Counter
}

func New() (*Metrics, error) {
	meter := otel.Meter(meterName)

	workflowsStarted, err := meter.Int64Counter("askgraph.workflows.started",
		metric.WithDescription("Workflows accepted for processing"))
	if err != nil {
		return nil, err
	}

	workflowsSucceeded, err := meter.Int64Counter("askgraph.workflows.succeeded",
		metric.WithDescription("Workflows that produced a final answer"))
	if err != nil {
		return nil, err
	}

	workflowsFailed, err := meter.Int64Counter("askgraph.workflows.failed",
		metric.WithDescription("Workflows that terminated with a failure"))
	if err != nil {
		return nil, err
	}

	workflowsCancelled, err := meter.Int64Counter("askgraph.workflows.cancelled",
		metric.WithDescription("Workflows cancelled by the caller"))
	if err != nil {
		return nil, err
	}

	stageLatency, err := meter.Float64Histogram("askgraph.stage.duration",
		metric.WithDescription("Per-stage processing time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	repairCycles, err := meter.Int64Counter("askgraph.validation.repair_cycles",
		metric.WithDescription("Plan repair cycles executed"))
	if err != nil {
		return nil, err
	}

	tasksDispatched, err := meter.Int64Counter("askgraph.tasks.dispatched",
		metric.WithDescription("Tasks published to slave pools"))
	if err != nil {
		return nil, err
	}

	taskErrors, err := meter.Int64Counter("askgraph.tasks.errors",
		metric.WithDescription("Task results carrying an error"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		workflowsStarted:   workflowsStarted,
		workflowsSucceeded: workflowsSucceeded,
		workflowsFailed:    workflowsFailed,
		workflowsCancelled: workflowsCancelled,
		stageLatency:       stageLatency,
		repairCycles:       repairCycles,
		tasksDispatched:    tasksDispatched,
		taskErrors:         taskErrors,
	}, nil
}

func (m *Metrics) WorkflowStarted(ctx context.Context) {
	if m == nil {
		return
	}

	m.workflowsStarted.Add(ctx, 1)
}

func (m *Metrics) WorkflowFinished(ctx context.Context, status string) {
	if m == nil {
		return
	}

	switch status {
	case "succeeded":
		m.workflowsSucceeded.Add(ctx, 1)
	case "cancelled":
		m.workflowsCancelled.Add(ctx, 1)
	default:
		m.workflowsFailed.Add(ctx, 1)
	}
}

func (m *Metrics) StageCompleted(ctx context.Context, domain, stage string, duration time.Duration) {
	if m == nil {
		return
	}

	m.stageLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("stage", stage),
		))
}

func (m *Metrics) RepairCycle(ctx context.Context) {
	if m == nil {
		return
	}

	m.repairCycles.Add(ctx, 1)
}

func (m *Metrics) TaskDispatched(ctx context.Context, poolName, capabilityName string) {
	if m == nil {
		return
	}

	m.tasksDispatched.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("pool", poolName),
			attribute.String("capability", capabilityName),
		))
}

func (m *Metrics) TaskFailed(ctx context.Context, poolName, capabilityName, kind string) {
	if m == nil {
		return
	}

	m.taskErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("pool", poolName),
			attribute.String("capability", capabilityName),
			attribute.String("kind", kind),
		))
}
