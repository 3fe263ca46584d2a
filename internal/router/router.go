package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-evaluation-api/internal/config"
	"github.com/noah-isme/gema-evaluation-api/internal/handler"
	"github.com/noah-isme/gema-evaluation-api/internal/middleware"
	"github.com/noah-isme/gema-evaluation-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	// JWTMiddleware guards the evaluation routes; nil leaves them open.
	JWTMiddleware   fiber.Handler
	SubmitRateLimit fiber.Handler
	HealthProbes    []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	if deps.EvaluationHandler == nil {
		return
	}

	var guards []fiber.Handler
	var routes handler.Routes
	if deps.JWTMiddleware != nil {
		guards = append(guards, deps.JWTMiddleware)
		routes.Department = append(routes.Department, middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager))
		routes.All = append(routes.All, middleware.RequireRole(middleware.RoleAdmin))
	}
	if deps.SubmitRateLimit != nil {
		routes.Submit = append(routes.Submit, deps.SubmitRateLimit)
	}

	deps.EvaluationHandler.Register(api.Group("/evaluations", guards...), routes)
}
