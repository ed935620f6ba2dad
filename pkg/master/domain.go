// Package master contains the orchestrators that drive a question through
// the pipeline: three domain masters owning cohesive sub-workflows and the
// global master owning the end-to-end state machine.
package master

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/metrics"
	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/registry"
	"github.com/askgraph/askgraph/pkg/taskbus"
)

// Artifact is the accumulated data flowing between stages of one workflow.
type Artifact map[string]any

// Observer receives stage transitions so the global master can persist them
// before and after each sub-stage runs. An error from StageStarted aborts the
// domain run: it means the workflow is terminal, cancelled, or another owner
// already advanced it.
type Observer interface {
	StageStarted(ctx context.Context, workflowID string, stage models.Stage) error
	StageCompleted(ctx context.Context, workflowID string, stage models.Stage, output map[string]any, started time.Time) error
}

// DomainRunner is the contract the global master invokes per domain.
type DomainRunner interface {
	Domain() models.Domain
	Run(ctx context.Context, workflowID string, artifact Artifact, observer Observer) (Artifact, error)
}

// DomainError wraps a sub-stage failure with the owning domain's context.
type DomainError struct {
	Domain models.Domain
	Stage  models.Stage
	Err    error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s domain failed at %s: %v", e.Domain, e.Stage, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// SubStage binds one pipeline stage to the capability that serves it.
type SubStage struct {
	Stage      models.Stage
	Capability string

	// BuildInput projects the accumulated artifact into the capability
	// payload. Nil passes the whole artifact through.
	BuildInput func(artifact Artifact) capability.Input

	// Fallback, when set, substitutes an artifact delta for a failed
	// sub-stage instead of failing the domain.
	Fallback func(artifact Artifact, err error) (map[string]any, bool)
}

// Config bounds a domain master's task dispatches.
type Config struct {
	TaskTimeout    time.Duration
	MaxTaskRetries int
}

// DomainMaster is the shared dispatch machinery behind the three domain
// instances: build a task per sub-stage, publish it to the owning pool, await
// the correlated result with timeout, retry transient failures up to the
// configured bound, and fold outputs left to right.
type DomainMaster struct {
	domain     models.Domain
	dispatcher *taskbus.Dispatcher
	registry   *registry.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        Config
}

func NewDomainMaster(
	domain models.Domain,
	dispatcher *taskbus.Dispatcher,
	reg *registry.Registry,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *DomainMaster {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}

	if cfg.MaxTaskRetries < 0 {
		cfg.MaxTaskRetries = 0
	}

	return &DomainMaster{
		domain:     domain,
		dispatcher: dispatcher,
		registry:   reg,
		metrics:    m,
		logger:     logger.With("module", "domain_master", "domain", string(domain)),
		cfg:        cfg,
	}
}

func (m *DomainMaster) Domain() models.Domain {
	return m.domain
}

// runSequence executes sub-stages in order. Any sub-stage error without a
// fallback short-circuits the remainder.
func (m *DomainMaster) runSequence(ctx context.Context, workflowID string, artifact Artifact, observer Observer, subStages []SubStage) (Artifact, error) {
	for _, subStage := range subStages {
		updated, err := m.runSubStage(ctx, workflowID, artifact, observer, subStage)
		if err != nil {
			return nil, err
		}

		artifact = updated
	}

	return artifact, nil
}

// runSubStage records the stage transition, executes the capability, and
// folds its output into the artifact.
func (m *DomainMaster) runSubStage(ctx context.Context, workflowID string, artifact Artifact, observer Observer, subStage SubStage) (Artifact, error) {
	err := observer.StageStarted(ctx, workflowID, subStage.Stage)
	if err != nil {
		return nil, &DomainError{Domain: m.domain, Stage: subStage.Stage, Err: err}
	}

	started := time.Now()

	output, err := m.Execute(ctx, workflowID, subStage.Capability, m.buildInput(artifact, subStage))
	if err != nil {
		fallback, ok := m.fallbackFor(artifact, subStage, err)
		if !ok {
			return nil, &DomainError{Domain: m.domain, Stage: subStage.Stage, Err: err}
		}

		output = fallback
	}

	folded := fold(artifact, output)

	err = observer.StageCompleted(ctx, workflowID, subStage.Stage, output, started)
	if err != nil {
		return nil, &DomainError{Domain: m.domain, Stage: subStage.Stage, Err: err}
	}

	m.metrics.StageCompleted(ctx, string(m.domain), string(subStage.Stage), time.Since(started))

	return folded, nil
}

func (m *DomainMaster) buildInput(artifact Artifact, subStage SubStage) capability.Input {
	if subStage.BuildInput != nil {
		return subStage.BuildInput(artifact)
	}

	return capability.Input(artifact)
}

func (m *DomainMaster) fallbackFor(artifact Artifact, subStage SubStage, err error) (map[string]any, bool) {
	if subStage.Fallback == nil {
		return nil, false
	}

	fallback, ok := subStage.Fallback(artifact, err)
	if ok {
		m.logger.Warn("Sub-stage failed, substituting fallback artifact",
			"stage", subStage.Stage, "error", err)
	}

	return fallback, ok
}

// Execute dispatches one task for a capability and awaits its result,
// retrying transient failures up to the configured bound. Permanent failures
// short-circuit immediately.
func (m *DomainMaster) Execute(ctx context.Context, workflowID, capabilityName string, input capability.Input) (map[string]any, error) {
	poolName, err := m.registry.PoolFor(capabilityName)
	if err != nil {
		return nil, capability.NewPermanent("no pool serves capability", err)
	}

	var lastErr error

	for attempt := 0; attempt <= m.cfg.MaxTaskRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		task := models.Task{
			ID:         "task-" + uuid.New().String()[:8],
			WorkflowID: workflowID,
			Capability: capabilityName,
			Input:      input,
			Timeout:    m.cfg.TaskTimeout,
		}

		m.metrics.TaskDispatched(ctx, poolName, capabilityName)

		result, err := m.dispatcher.Dispatch(ctx, poolName, task)
		if err != nil {
			lastErr = err

			if capability.IsTransient(err) {
				m.logger.Warn("Task dispatch failed, may retry",
					"capability", capabilityName, "attempt", attempt, "error", err)

				continue
			}

			return nil, err
		}

		if result.Success {
			return result.Output, nil
		}

		lastErr = resultError(result)
		m.metrics.TaskFailed(ctx, poolName, capabilityName, result.ErrorKind)

		if !capability.IsTransient(lastErr) {
			return nil, lastErr
		}

		m.logger.Warn("Task failed, may retry",
			"capability", capabilityName, "attempt", attempt, "error", lastErr)
	}

	return nil, lastErr
}

func resultError(result models.TaskResult) error {
	switch capability.ErrorKind(result.ErrorKind) {
	case capability.KindTransient:
		return capability.NewTransient(result.ErrorMessage, nil)
	default:
		return capability.NewPermanent(result.ErrorMessage, nil)
	}
}

// fold merges a sub-stage output into the accumulated artifact without
// mutating the input.
func fold(artifact Artifact, output map[string]any) Artifact {
	merged := make(Artifact, len(artifact)+len(output))
	maps.Copy(merged, artifact)
	maps.Copy(merged, output)

	return merged
}
