package models

import "time"

// Task is one unit of work dispatched to a slave pool. It is created by a
// domain master, consumed by a pool worker, and discarded once its result is
// delivered or its timeout elapses.
type Task struct {
	ID            string         `json:"id"             validate:"required"`
	WorkflowID    string         `json:"workflow_id"    validate:"required"`
	Capability    string         `json:"capability"     validate:"required"`
	Input         map[string]any `json:"input,omitempty"`
	Timeout       time.Duration  `json:"timeout"`
	CorrelationID string         `json:"correlation_id" validate:"required"`
}

// TaskResult is the outcome of a capability execution, correlated 1:1 with
// the task that produced it.
type TaskResult struct {
	TaskID        string         `json:"task_id"`
	CorrelationID string         `json:"correlation_id"`
	WorkflowID    string         `json:"workflow_id"`
	Success       bool           `json:"success"`
	Output        map[string]any `json:"output,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Duration      time.Duration  `json:"duration"`
}
