// Standardized error types for workflow state operations.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no record exists for the given workflow id.
	ErrNotFound = errors.New("workflow record not found")

	// ErrAlreadyExists indicates a record with the same id already exists.
	ErrAlreadyExists = errors.New("workflow record already exists")

	// ErrStageConflict indicates a conditional transition found the record at
	// a different stage than expected.
	ErrStageConflict = errors.New("workflow stage conflict")

	// ErrTerminal indicates the record already reached a terminal status and
	// permits no further transitions.
	ErrTerminal = errors.New("workflow already terminal")
)

// WorkflowError wraps state-store errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a state-store error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsNotFound checks if an error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStageConflict checks if an error indicates a lost conditional transition.
func IsStageConflict(err error) bool {
	return errors.Is(err, ErrStageConflict)
}

// IsTerminal checks if an error indicates the record is already terminal.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}
