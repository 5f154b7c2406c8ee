package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/grade-sanchalaak/internal/config"
	"github.com/noah-isme/grade-sanchalaak/internal/handler"
	"github.com/noah-isme/grade-sanchalaak/internal/middleware"
	"github.com/noah-isme/grade-sanchalaak/internal/observability"
)

// GradingPrefix is the base path of every grading route.
const GradingPrefix = "/api/v2/grading"

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	SubmissionHandler *handler.SubmissionHandler
	EvaluationHandler *handler.EvaluationHandler
	HealthProbes      map[string]handler.Probe
	JWTMiddleware     fiber.Handler
	LimiterStorage    fiber.Storage
	ExposeMetrics     bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.ExposeMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	grading := app.Group(GradingPrefix, jwtMiddleware)
	staffOnly := middleware.RequireStaff()
	evaluateLimiter := middleware.RateLimit("grading:evaluate", cfg.RateLimits.EvaluateMax, cfg.RateLimits.EvaluateWindow, deps.LimiterStorage)

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(grading.Group("/assignments"), staffOnly)
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(grading.Group("/submissions"), staffOnly)
	}

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(grading, staffOnly, evaluateLimiter)
	}
}
