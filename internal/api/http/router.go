package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/tickets/:id/sla", cfg.SLA.GetStatus)
	api.Post("/tickets/:id/sla/sync", cfg.SLA.SyncPauseState)
}
