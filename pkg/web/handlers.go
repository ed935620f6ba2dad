package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/askgraph/askgraph/pkg/master"
	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
)

// Orchestrator is the surface the handlers need from the global master.
type Orchestrator interface {
	Submit(ctx context.Context, question string, turns []models.ConversationTurn, bypassCache bool) (models.WorkflowResult, error)
	Status(ctx context.Context, workflowID string) (master.Status, error)
	Result(ctx context.Context, workflowID string) (models.WorkflowResult, error)
	Cancel(ctx context.Context, workflowID string) error
}

type APIHandlers struct {
	orchestrator Orchestrator
	store        store.Store
	validator    *validator.Validate
}

func NewAPIHandlers(orchestrator Orchestrator, s store.Store, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		store:        s,
		validator:    validate,
	}
}

// AskQuestion submits a question and blocks until its workflow reaches a
// terminal status. The response is well formed for every outcome.
func (h *APIHandlers) AskQuestion(c fiber.Ctx) error {
	var req AskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.orchestrator.Submit(c.Context(), req.Question, req.Context, req.BypassCache)
	if err != nil {
		return badRequest(c, err.Error())
	}

	status := fiber.StatusOK
	if result.Status == models.WorkflowStatusFailed {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(TransformResult(result))
}

func (h *APIHandlers) GetWorkflowStatus(c fiber.Ctx) error {
	status, err := h.orchestrator.Status(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) GetWorkflowResult(c fiber.Ctx) error {
	result, err := h.orchestrator.Result(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(TransformResult(result))
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	records, err := h.store.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	statuses := make([]master.Status, 0, len(records))
	for _, record := range records {
		statuses = append(statuses, master.Status{
			WorkflowID: record.ID,
			Stage:      record.CurrentStage,
			Status:     record.Status,
			Feedback:   record.Feedback,
		})
	}

	return c.JSON(fiber.Map{
		"workflows":   statuses,
		"total_count": len(statuses),
	})
}

// CancelWorkflow marks a workflow Cancelled. Cancelling a workflow that is
// already terminal is a conflict; its recorded outcome stands.
func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	err := h.orchestrator.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeErr := h.store.HealthCheck(c.Context())

	status := "healthy"
	message := "AskGraph API is healthy"
	httpStatus := http.StatusOK
	storeCheck := "ok"

	if storeErr != nil {
		status = "unhealthy"
		message = "AskGraph API is unhealthy"
		httpStatus = http.StatusInternalServerError
		storeCheck = storeErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
