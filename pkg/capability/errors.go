// Error taxonomy for capability executions, following the persistence error
// conventions: sentinel kinds, wrapper structs with Unwrap/Is, and helper
// predicates for callers.
package capability

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a capability failure for retry and propagation policy.
type ErrorKind string

const (
	// KindTransient marks timeouts and unavailability. Retried up to a bound.
	KindTransient ErrorKind = "transient"

	// KindPermanent marks malformed input or unsupported operations. Never
	// retried; short-circuits the owning domain.
	KindPermanent ErrorKind = "permanent"

	// KindValidation marks plan or query inconsistency. Drives repair and
	// becomes a hard failure only once the repair budget is exhausted.
	KindValidation ErrorKind = "validation"

	// KindWorkflowTimeout marks the overall workflow deadline being exceeded.
	KindWorkflowTimeout ErrorKind = "workflow_timeout"

	// KindCancelled marks caller-initiated cancellation. A success-path
	// termination, not an error condition.
	KindCancelled ErrorKind = "cancelled"
)

// Error is a classified capability failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s capability error: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s capability error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient creates a retriable capability error.
func NewTransient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// NewPermanent creates a non-retriable capability error.
func NewPermanent(message string, err error) *Error {
	return &Error{Kind: KindPermanent, Message: message, Err: err}
}

// ValidationFailure carries the verdict feedback that drives the repair loop.
// The feedback is preserved verbatim all the way to the caller when the
// repair budget runs out.
type ValidationFailure struct {
	Feedback []string
}

func (e *ValidationFailure) Error() string {
	return "plan validation failed: " + strings.Join(e.Feedback, "; ")
}

// KindOf classifies an arbitrary error for task-result encoding. Unclassified
// errors are treated as permanent: retrying an unknown failure hides bugs.
func KindOf(err error) ErrorKind {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Kind
	}

	var validation *ValidationFailure
	if errors.As(err, &validation) {
		return KindValidation
	}

	if errors.Is(err, ErrWorkflowTimeout) {
		return KindWorkflowTimeout
	}

	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}

	return KindPermanent
}

// IsTransient reports whether the failure may succeed on retry.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// Workflow-level sentinel errors enforced by the global master.
var (
	// ErrWorkflowTimeout indicates the overall per-workflow deadline elapsed.
	ErrWorkflowTimeout = errors.New("workflow deadline exceeded")

	// ErrCancelled indicates the caller cancelled the workflow.
	ErrCancelled = errors.New("workflow cancelled")
)
