// Package store provides the durable workflow state abstraction. It is the
// single source of truth for workflow status; stage transitions are atomic
// and conditional so racing completions on the same id cannot both win.
package store

import (
	"context"
	"time"

	"github.com/askgraph/askgraph/pkg/models"
)

// Mutation adjusts a record inside an atomic transition.
type Mutation func(record *models.WorkflowRecord)

// Store persists workflow records.
type Store interface {
	// Create stores a new record. Returns ErrAlreadyExists when the id is
	// taken.
	Create(ctx context.Context, record *models.WorkflowRecord) error

	// Get returns the record for an id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.WorkflowRecord, error)

	// Transition atomically advances a record from one stage to another,
	// applying mutations under the same conditional check. It fails with
	// ErrStageConflict when the record is not currently at `from`, and with
	// ErrTerminal when the record has already reached a terminal status.
	Transition(ctx context.Context, id string, from, to models.Stage, mutations ...Mutation) (*models.WorkflowRecord, error)

	// Complete atomically moves a record to a terminal status. It fails with
	// ErrTerminal when the record is already terminal, which makes terminal
	// results idempotent for pollers.
	Complete(ctx context.Context, id string, status models.WorkflowStatus, mutations ...Mutation) (*models.WorkflowRecord, error)

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// List returns every stored record.
	List(ctx context.Context) ([]*models.WorkflowRecord, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ApplyTransition implements the shared conditional-transition rules on a
// loaded record. Implementations call it while holding whatever isolation
// their backend provides (mutex, file lock, WATCH).
func ApplyTransition(record *models.WorkflowRecord, from, to models.Stage, mutations ...Mutation) error {
	if record.Status.IsTerminal() {
		return NewWorkflowError("Transition", record.ID, ErrTerminal)
	}

	if record.CurrentStage != from {
		return NewWorkflowError("Transition", record.ID, ErrStageConflict)
	}

	record.CurrentStage = to
	record.Status = models.WorkflowStatusInProgress
	record.UpdatedAt = time.Now()

	for _, mutate := range mutations {
		mutate(record)
	}

	return nil
}

// ApplyCompletion implements the shared terminal-transition rules.
func ApplyCompletion(record *models.WorkflowRecord, status models.WorkflowStatus, mutations ...Mutation) error {
	if record.Status.IsTerminal() {
		return NewWorkflowError("Complete", record.ID, ErrTerminal)
	}

	now := time.Now()
	record.Status = status
	record.UpdatedAt = now
	record.CompletedAt = &now

	for _, mutate := range mutations {
		mutate(record)
	}

	return nil
}
