package master

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askgraph/askgraph/pkg/cache"
	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/metrics"
	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/registry"
	"github.com/askgraph/askgraph/pkg/store"
	"github.com/askgraph/askgraph/pkg/taskbus"
)

// GlobalConfig bounds the end-to-end state machine.
type GlobalConfig struct {
	// MaxRepairAttempts caps the Planning/Validating repair loop. Exhausting
	// it fails the workflow with the accumulated validation feedback exposed
	// to the caller verbatim. The low default is a product decision favoring
	// transparency over a generic error message.
	MaxRepairAttempts int

	// MaxTaskRetries bounds per-task retries on transient failures.
	MaxTaskRetries int

	// TaskTimeout bounds one capability execution.
	TaskTimeout time.Duration

	// DomainTimeout bounds one domain master invocation, sitting between the
	// per-task timeout and the workflow deadline.
	DomainTimeout time.Duration

	// WorkflowTimeout bounds the whole workflow, independently of any
	// stage-level timeout.
	WorkflowTimeout time.Duration
}

// DefaultGlobalConfig returns the production defaults.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		MaxRepairAttempts: 2,
		MaxTaskRetries:    1,
		TaskTimeout:       30 * time.Second,
		DomainTimeout:     time.Minute,
		WorkflowTimeout:   2 * time.Minute,
	}
}

// Status is the polling surface for one workflow.
type Status struct {
	WorkflowID string                `json:"workflow_id"`
	Stage      models.Stage          `json:"stage"`
	Status     models.WorkflowStatus `json:"status"`
	Feedback   []string              `json:"feedback,omitempty"`
}

// GlobalMaster owns the end-to-end state machine: it creates the workflow
// record, invokes the domain masters in sequence, persists every transition,
// and always returns a well-formed result.
type GlobalMaster struct {
	store   store.Store
	answers cache.AnswerCache
	domains []DomainRunner
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     GlobalConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewGlobalMaster wires the three domain masters over a shared dispatcher and
// registry. The answer cache is optional.
func NewGlobalMaster(
	s store.Store,
	answers cache.AnswerCache,
	dispatcher *taskbus.Dispatcher,
	reg *registry.Registry,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg GlobalConfig,
) *GlobalMaster {
	defaults := DefaultGlobalConfig()

	if cfg.MaxRepairAttempts <= 0 {
		cfg.MaxRepairAttempts = defaults.MaxRepairAttempts
	}

	if cfg.MaxTaskRetries < 0 {
		cfg.MaxTaskRetries = defaults.MaxTaskRetries
	}

	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}

	if cfg.DomainTimeout <= 0 {
		cfg.DomainTimeout = defaults.DomainTimeout
	}

	if cfg.WorkflowTimeout <= 0 {
		cfg.WorkflowTimeout = defaults.WorkflowTimeout
	}

	domainCfg := Config{
		TaskTimeout:    cfg.TaskTimeout,
		MaxTaskRetries: cfg.MaxTaskRetries,
	}

	return &GlobalMaster{
		store:   s,
		answers: answers,
		metrics: m,
		logger:  logger.With("module", "global_master"),
		cfg:     cfg,
		cancels: make(map[string]context.CancelFunc),
		domains: []DomainRunner{
			NewUnderstandingMaster(NewDomainMaster(models.DomainUnderstanding, dispatcher, reg, m, logger, domainCfg)),
			NewConstructionMaster(NewDomainMaster(models.DomainConstruction, dispatcher, reg, m, logger, domainCfg), cfg.MaxRepairAttempts),
			NewResponseMaster(NewDomainMaster(models.DomainResponse, dispatcher, reg, m, logger, domainCfg)),
		},
	}
}

// Submit drives one question through the pipeline and blocks until it reaches
// a terminal status. It never propagates a raw collaborator failure: the
// returned result is always well formed.
func (g *GlobalMaster) Submit(ctx context.Context, question string, turns []models.ConversationTurn, bypassCache bool) (models.WorkflowResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.WorkflowResult{}, errors.New("question must not be empty")
	}

	if g.answers != nil && !bypassCache {
		if cached, ok := g.answers.Get(ctx, cache.Key(question, turns)); ok {
			g.logger.Debug("Answer cache hit", "question", question)

			return *cached, nil
		}
	}

	now := time.Now()
	record := &models.WorkflowRecord{
		ID:           uuid.New().String(),
		Question:     question,
		Context:      turns,
		CurrentStage: models.StageReceived,
		Status:       models.WorkflowStatusPending,
		RetryCounts:  make(map[models.Stage]int),
		Outputs: []models.StageOutput{{
			Stage:      models.StageReceived,
			Artifact:   map[string]any{ArtifactQuestion: question},
			StartedAt:  now,
			FinishedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := g.store.Create(ctx, record)
	if err != nil {
		return models.WorkflowResult{}, fmt.Errorf("failed to create workflow record: %w", err)
	}

	g.metrics.WorkflowStarted(ctx)

	logger := g.logger.With("workflow_id", record.ID)
	logger.Info("Workflow created", "question", question)

	wfCtx, cancel := context.WithTimeout(ctx, g.cfg.WorkflowTimeout)
	defer cancel()

	g.registerCancel(record.ID, cancel)
	defer g.unregisterCancel(record.ID)

	artifact := Artifact{
		ArtifactQuestion: question,
		ArtifactContext:  contextPayload(turns),
	}

	observer := &stageObserver{store: g.store, prev: models.StageReceived}

	for _, domain := range g.domains {
		artifact, err = g.runDomain(wfCtx, domain, record.ID, artifact, observer)
		if err != nil {
			return g.fail(ctx, record.ID, err), nil
		}
	}

	response, _ := artifact[ArtifactResponse].(string)

	final, err := g.store.Complete(ctx, record.ID, models.WorkflowStatusSucceeded, func(r *models.WorkflowRecord) {
		r.Response = response
	})
	if err != nil {
		// A racing cancellation already made the record terminal; its result
		// stands.
		if store.IsTerminal(err) {
			return g.terminalResult(ctx, record.ID), nil
		}

		return models.WorkflowResult{}, fmt.Errorf("failed to complete workflow %s: %w", record.ID, err)
	}

	g.metrics.WorkflowFinished(ctx, string(final.Status))
	logger.Info("Workflow succeeded", "stages", len(final.Outputs))

	result := resultFrom(final)

	if g.answers != nil {
		g.answers.Set(ctx, cache.Key(question, turns), &result)
	}

	return result, nil
}

// runDomain invokes one domain master under its own deadline, layered inside
// the workflow deadline.
func (g *GlobalMaster) runDomain(ctx context.Context, domain DomainRunner, workflowID string, artifact Artifact, observer Observer) (Artifact, error) {
	domainCtx, cancel := context.WithTimeout(ctx, g.cfg.DomainTimeout)
	defer cancel()

	artifact, err := domain.Run(domainCtx, workflowID, artifact, observer)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		// The domain deadline fired while the workflow deadline still has
		// room; report a timeout for that domain, not for the workflow.
		return nil, capability.NewTransient(fmt.Sprintf("%s domain deadline exceeded", domain.Domain()), nil)
	}

	return artifact, err
}

// Status reports the current stage and status for a workflow id. Polling a
// terminal workflow always returns the same terminal answer.
func (g *GlobalMaster) Status(ctx context.Context, workflowID string) (Status, error) {
	record, err := g.store.Get(ctx, workflowID)
	if err != nil {
		return Status{}, err
	}

	return Status{
		WorkflowID: record.ID,
		Stage:      record.CurrentStage,
		Status:     record.Status,
		Feedback:   record.Feedback,
	}, nil
}

// Result returns the full workflow result for a workflow id.
func (g *GlobalMaster) Result(ctx context.Context, workflowID string) (models.WorkflowResult, error) {
	record, err := g.store.Get(ctx, workflowID)
	if err != nil {
		return models.WorkflowResult{}, err
	}

	return resultFrom(record), nil
}

// Cancel marks the workflow Cancelled and interrupts its masters. Late task
// results for the id are discarded as no-ops.
func (g *GlobalMaster) Cancel(ctx context.Context, workflowID string) error {
	_, err := g.store.Complete(ctx, workflowID, models.WorkflowStatusCancelled, func(r *models.WorkflowRecord) {
		r.Response = "The question was cancelled before an answer was produced."
		r.ErrorKind = string(capability.KindCancelled)
	})
	if err != nil {
		return err
	}

	g.metrics.WorkflowFinished(ctx, string(models.WorkflowStatusCancelled))

	g.mu.Lock()
	cancel, ok := g.cancels[workflowID]
	g.mu.Unlock()

	if ok {
		cancel()
	}

	g.logger.Info("Workflow cancelled", "workflow_id", workflowID)

	return nil
}

// fail classifies a pipeline error and closes the workflow with a well-formed
// result. Validation feedback reaches the response text verbatim.
func (g *GlobalMaster) fail(ctx context.Context, workflowID string, runErr error) models.WorkflowResult {
	status := models.WorkflowStatusFailed
	kind := capability.KindOf(runErr)

	var feedback []string

	var validation *capability.ValidationFailure
	if errors.As(runErr, &validation) {
		feedback = validation.Feedback
	}

	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, capability.ErrCancelled), store.IsTerminal(runErr):
		// The record was already closed by Cancel; report its terminal state.
		return g.terminalResult(ctx, workflowID)
	case errors.Is(runErr, context.DeadlineExceeded):
		kind = capability.KindWorkflowTimeout
	}

	response := failureResponse(kind, feedback)

	final, err := g.store.Complete(ctx, workflowID, status, func(r *models.WorkflowRecord) {
		r.Response = response
		r.Feedback = feedback
		r.ErrorKind = string(kind)
		r.ErrorDetail = runErr.Error()
	})
	if err != nil {
		if store.IsTerminal(err) {
			return g.terminalResult(ctx, workflowID)
		}

		g.logger.Error("Failed to persist workflow failure", "workflow_id", workflowID, "error", err)

		return models.WorkflowResult{
			WorkflowID: workflowID,
			Response:   response,
			Status:     status,
			Feedback:   feedback,
		}
	}

	g.metrics.WorkflowFinished(ctx, string(final.Status))
	g.logger.Warn("Workflow failed", "workflow_id", workflowID, "kind", kind, "error", runErr)

	return resultFrom(final)
}

func (g *GlobalMaster) terminalResult(ctx context.Context, workflowID string) models.WorkflowResult {
	record, err := g.store.Get(ctx, workflowID)
	if err != nil {
		return models.WorkflowResult{
			WorkflowID: workflowID,
			Status:     models.WorkflowStatusCancelled,
			Response:   "The question was cancelled before an answer was produced.",
		}
	}

	return resultFrom(record)
}

func (g *GlobalMaster) registerCancel(workflowID string, cancel context.CancelFunc) {
	g.mu.Lock()
	g.cancels[workflowID] = cancel
	g.mu.Unlock()
}

func (g *GlobalMaster) unregisterCancel(workflowID string) {
	g.mu.Lock()
	delete(g.cancels, workflowID)
	g.mu.Unlock()
}

func resultFrom(record *models.WorkflowRecord) models.WorkflowResult {
	return models.WorkflowResult{
		WorkflowID: record.ID,
		Response:   record.Response,
		Status:     record.Status,
		Trace:      record.Outputs,
		Feedback:   record.Feedback,
	}
}

// failureResponse builds the user-visible failure message. Validation
// feedback is embedded literally: surfacing the checklist items beats a
// generic apology.
func failureResponse(kind capability.ErrorKind, feedback []string) string {
	switch kind {
	case capability.KindValidation:
		var b strings.Builder

		b.WriteString("I'm sorry, I could not build a reliable query for this question. ")
		b.WriteString("Plan validation reported:\n")

		for _, item := range feedback {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}

		return b.String()
	case capability.KindWorkflowTimeout:
		return "I'm sorry, answering this question took too long and the request was abandoned."
	case capability.KindCancelled:
		return "The question was cancelled before an answer was produced."
	default:
		return "I'm sorry, I could not answer this question because a processing step failed."
	}
}

func contextPayload(turns []models.ConversationTurn) []map[string]any {
	payload := make([]map[string]any, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, map[string]any{"role": turn.Role, "text": turn.Text})
	}

	return payload
}

// stageObserver persists stage transitions for one workflow run. Transitions
// are conditional on the previously observed stage, so a record that was
// cancelled or advanced elsewhere rejects further mutation.
type stageObserver struct {
	store store.Store
	prev  models.Stage
}

func (o *stageObserver) StageStarted(ctx context.Context, workflowID string, stage models.Stage) error {
	_, err := o.store.Transition(ctx, workflowID, o.prev, stage, func(r *models.WorkflowRecord) {
		if r.RetryCounts == nil {
			r.RetryCounts = make(map[models.Stage]int)
		}

		r.RetryCounts[stage]++

		if stage == models.StageRepairing {
			r.RepairCycles++
		}
	})
	if err != nil {
		if store.IsTerminal(err) {
			return capability.ErrCancelled
		}

		return err
	}

	o.prev = stage

	return nil
}

func (o *stageObserver) StageCompleted(ctx context.Context, workflowID string, stage models.Stage, output map[string]any, started time.Time) error {
	finished := time.Now()

	_, err := o.store.Transition(ctx, workflowID, stage, stage, func(r *models.WorkflowRecord) {
		r.Outputs = append(r.Outputs, models.StageOutput{
			Stage:      stage,
			Artifact:   output,
			StartedAt:  started,
			FinishedAt: finished,
		})
	})
	if err != nil {
		if store.IsTerminal(err) {
			return capability.ErrCancelled
		}

		return err
	}

	return nil
}
