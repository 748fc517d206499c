package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sage-go-api/internal/config"
	"github.com/noah-isme/sage-go-api/internal/handler"
	"github.com/noah-isme/sage-go-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler       *handler.ExamHandler
	EvaluationHandler *handler.EvaluationHandler
	ApprovalHandler   *handler.ApprovalHandler
	ResultHandler     *handler.ResultHandler
	SettingsHandler   *handler.SettingsHandler
	JWTMiddleware     fiber.Handler
	ReviewerOnly      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided middleware, or no-ops if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	reviewerOnly := deps.ReviewerOnly
	if reviewerOnly == nil {
		reviewerOnly = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Exams and question management (reviewer surface)
	if deps.ExamHandler != nil {
		exams := api.Group("/exams", jwtMiddleware, reviewerOnly)
		deps.ExamHandler.Register(exams)
	}

	// Evaluation pipeline. Rate limited per user: every request can fan out
	// into model server calls. Reads carry unreleased scores, so the handler
	// puts them behind the reviewer gate.
	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware,
			middleware.RateLimit("evaluations", 30, time.Minute))
		deps.EvaluationHandler.Register(evaluations, reviewerOnly)
	}

	// Approval workflow (reviewer surface)
	if deps.ApprovalHandler != nil {
		approvals := api.Group("/approvals", jwtMiddleware, reviewerOnly)
		deps.ApprovalHandler.Register(approvals)
	}

	// Released results
	if deps.ResultHandler != nil {
		results := api.Group("/results", jwtMiddleware)
		deps.ResultHandler.Register(results)
	}

	// Evaluator settings (reviewer surface)
	if deps.SettingsHandler != nil {
		settings := api.Group("/settings", jwtMiddleware, reviewerOnly)
		deps.SettingsHandler.Register(settings)
	}
}
