// Package main provides the AskGraph API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/askgraph/askgraph/pkg/master"
	"github.com/askgraph/askgraph/pkg/store"
	"github.com/askgraph/askgraph/pkg/web"
)

type API struct {
	logger       *slog.Logger
	store        store.Store
	orchestrator *master.GlobalMaster
	validate     *validator.Validate
}

func NewAPI(logger *slog.Logger, s store.Store, orchestrator *master.GlobalMaster) *API {
	return &API{
		logger:       logger,
		store:        s,
		orchestrator: orchestrator,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.orchestrator, a.store, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("AskGraph API")
	})

	q := app.Group("/v1/questions")
	q.Post("/", handlers.AskQuestion)
	q.Get("/", handlers.GetWorkflows)
	q.Get("/:id", handlers.GetWorkflowStatus)
	q.Get("/:id/result", handlers.GetWorkflowResult)
	q.Delete("/:id", handlers.CancelWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
