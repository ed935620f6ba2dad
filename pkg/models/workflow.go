package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow record.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusSucceeded  WorkflowStatus = "succeeded"
	WorkflowStatusFailed     WorkflowStatus = "failed"
	WorkflowStatusCancelled  WorkflowStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusSucceeded || s == WorkflowStatusFailed || s == WorkflowStatusCancelled
}

// ConversationTurn is one entry of the ordered conversation context submitted
// alongside a question.
type ConversationTurn struct {
	Role string `json:"role" validate:"required,oneof=user assistant"`
	Text string `json:"text" validate:"required"`
}

// StageOutput is one trace entry: the artifact a stage produced, with timing.
type StageOutput struct {
	Stage      Stage          `json:"stage"`
	Artifact   map[string]any `json:"artifact,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Duration returns the wall time the stage spent processing.
func (o StageOutput) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// WorkflowRecord is the durable state of one in-flight question. Exactly one
// record exists per submitted question, and only the global master that owns
// the workflow mutates it. Terminal records are retained for audit and reaped
// after the retention window.
type WorkflowRecord struct {
	ID           string             `json:"id"                      validate:"required"`
	Question     string             `json:"question"                validate:"required"`
	Context      []ConversationTurn `json:"context,omitempty"       validate:"dive"`
	CurrentStage Stage              `json:"current_stage"`
	Status       WorkflowStatus     `json:"status"                  validate:"required"`
	Outputs      []StageOutput      `json:"outputs,omitempty"`
	RetryCounts  map[Stage]int      `json:"retry_counts,omitempty"`
	RepairCycles int                `json:"repair_cycles"`
	Response     string             `json:"response,omitempty"`
	Feedback     []string           `json:"feedback,omitempty"`
	ErrorDetail  string             `json:"error_detail,omitempty"`
	ErrorKind    string             `json:"error_kind,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// Output returns the recorded artifact for a stage, if the stage has run.
func (r *WorkflowRecord) Output(stage Stage) (map[string]any, bool) {
	for i := len(r.Outputs) - 1; i >= 0; i-- {
		if r.Outputs[i].Stage == stage {
			return r.Outputs[i].Artifact, true
		}
	}

	return nil, false
}

// Trace returns the stages in the order they produced output.
func (r *WorkflowRecord) Trace() []Stage {
	trace := make([]Stage, 0, len(r.Outputs))
	for _, out := range r.Outputs {
		trace = append(trace, out.Stage)
	}

	return trace
}

// WorkflowResult is the caller-facing outcome of a submitted question. It is
// always well formed: failures degrade to an apologetic response that carries
// the last validation feedback verbatim.
type WorkflowResult struct {
	WorkflowID string         `json:"workflow_id"`
	Response   string         `json:"response"`
	Status     WorkflowStatus `json:"status"`
	Trace      []StageOutput  `json:"trace,omitempty"`
	Feedback   []string       `json:"feedback,omitempty"`
	FromCache  bool           `json:"from_cache,omitempty"`
}
