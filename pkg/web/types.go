// Package web provides HTTP handlers and REST API endpoints for submitting
// questions and tracking their workflows.
package web

import "github.com/askgraph/askgraph/pkg/models"

// AskRequest represents the request body for submitting a question.
type AskRequest struct {
	Question    string                    `json:"question"     validate:"required,min=3"`
	Context     []models.ConversationTurn `json:"context"      validate:"omitempty,dive"`
	BypassCache bool                      `json:"bypass_cache"`
}

// AskResponse represents the terminal outcome of a submitted question.
type AskResponse struct {
	WorkflowID string                `json:"workflow_id"`
	Response   string                `json:"response"`
	Status     models.WorkflowStatus `json:"status"`
	Feedback   []string              `json:"feedback,omitempty"`
	FromCache  bool                  `json:"from_cache,omitempty"`
	Trace      []TraceEntry          `json:"trace"`
}

// TraceEntry is one stage of the workflow trace with its duration in
// milliseconds.
type TraceEntry struct {
	Stage      models.Stage `json:"stage"`
	DurationMS int64        `json:"duration_ms"`
}

// TransformResult shapes a workflow result for the API surface. Stage
// artifacts stay internal; callers get the stage sequence and timings.
func TransformResult(result models.WorkflowResult) AskResponse {
	trace := make([]TraceEntry, 0, len(result.Trace))
	for _, output := range result.Trace {
		trace = append(trace, TraceEntry{
			Stage:      output.Stage,
			DurationMS: output.Duration().Milliseconds(),
		})
	}

	return AskResponse{
		WorkflowID: result.WorkflowID,
		Response:   result.Response,
		Status:     result.Status,
		Feedback:   result.Feedback,
		FromCache:  result.FromCache,
		Trace:      trace,
	}
}
