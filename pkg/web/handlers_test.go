package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/master"
	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
	"github.com/askgraph/askgraph/pkg/store/memory"
	"github.com/askgraph/askgraph/pkg/web"
)

// fakeOrchestrator scripts handler outcomes without running the pipeline.
type fakeOrchestrator struct {
	result     models.WorkflowResult
	submitErr  error
	lookupErr  error
	cancelErr  error
	cancelled  []string
	lastTurns  []models.ConversationTurn
	lastAsked  string
	statusResp master.Status
}

func (f *fakeOrchestrator) Submit(_ context.Context, question string, turns []models.ConversationTurn, _ bool) (models.WorkflowResult, error) {
	f.lastAsked = question
	f.lastTurns = turns

	return f.result, f.submitErr
}

func (f *fakeOrchestrator) Status(_ context.Context, _ string) (master.Status, error) {
	return f.statusResp, f.lookupErr
}

func (f *fakeOrchestrator) Result(_ context.Context, _ string) (models.WorkflowResult, error) {
	return f.result, f.lookupErr
}

func (f *fakeOrchestrator) Cancel(_ context.Context, workflowID string) error {
	f.cancelled = append(f.cancelled, workflowID)

	return f.cancelErr
}

func setupTestApp(t *testing.T, fake *fakeOrchestrator) *fiber.App {
	t.Helper()

	handlers := web.NewAPIHandlers(fake, memory.NewStore(), validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	q := app.Group("/v1/questions")
	q.Post("/", handlers.AskQuestion)
	q.Get("/", handlers.GetWorkflows)
	q.Get("/:id", handlers.GetWorkflowStatus)
	q.Get("/:id/result", handlers.GetWorkflowResult)
	q.Delete("/:id", handlers.CancelWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func TestAskQuestionReturnsResult(t *testing.T) {
	fake := &fakeOrchestrator{
		result: models.WorkflowResult{
			WorkflowID: "wf-1",
			Response:   "The answer is Danube.",
			Status:     models.WorkflowStatusSucceeded,
		},
	}
	app := setupTestApp(t, fake)

	body, err := json.Marshal(web.AskRequest{
		Question: "Which river flows through Vienna?",
		Context: []models.ConversationTurn{
			{Role: "user", Text: "Tell me about Vienna."},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/questions/", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed web.AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, "wf-1", parsed.WorkflowID)
	assert.Equal(t, "The answer is Danube.", parsed.Response)

	assert.Equal(t, "Which river flows through Vienna?", fake.lastAsked)
	assert.Len(t, fake.lastTurns, 1)
}

func TestAskQuestionValidatesBody(t *testing.T) {
	app := setupTestApp(t, &fakeOrchestrator{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing question", body: `{}`},
		{name: "short question", body: `{"question": "hi"}`},
		{name: "bad context role", body: `{"question": "Which river flows through Vienna?", "context": [{"role": "robot", "text": "x"}]}`},
		{name: "malformed json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/questions/", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAskQuestionFailedWorkflowIsUnprocessable(t *testing.T) {
	fake := &fakeOrchestrator{
		result: models.WorkflowResult{
			WorkflowID: "wf-1",
			Status:     models.WorkflowStatusFailed,
			Feedback:   []string{"step 2 references an unmapped entity"},
		},
	}
	app := setupTestApp(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/v1/questions/",
		bytes.NewBufferString(`{"question": "Which river flows through Atlantis?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var parsed web.AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, []string{"step 2 references an unmapped entity"}, parsed.Feedback)
}

func TestGetWorkflowStatusNotFound(t *testing.T) {
	fake := &fakeOrchestrator{
		lookupErr: store.NewWorkflowError("Get", "missing", store.ErrNotFound),
	}
	app := setupTestApp(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/questions/missing", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelWorkflow(t *testing.T) {
	fake := &fakeOrchestrator{}
	app := setupTestApp(t, fake)

	req := httptest.NewRequest(http.MethodDelete, "/v1/questions/wf-1", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"wf-1"}, fake.cancelled)
}

func TestCancelTerminalWorkflowConflicts(t *testing.T) {
	fake := &fakeOrchestrator{
		cancelErr: store.NewWorkflowError("Complete", "wf-1", store.ErrTerminal),
	}
	app := setupTestApp(t, fake)

	req := httptest.NewRequest(http.MethodDelete, "/v1/questions/wf-1", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app := setupTestApp(t, &fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
