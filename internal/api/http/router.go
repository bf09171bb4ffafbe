package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intake-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Webhook       *handlers.WebhookHandler
	Threads       *handlers.ThreadsHandler
	Unmatched     *handlers.UnmatchedHandler
	Notifications *handlers.NotificationsHandler
	Assignments   *handlers.AssignmentsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/healthz", cfg.Health.Ready)

	app.Post("/webhooks/inbound", cfg.Webhook.Inbound)

	v1 := app.Group("/api/v1")

	threads := v1.Group("/threads")
	threads.Get("/", cfg.Threads.List)
	threads.Get("/:id", cfg.Threads.Get)
	threads.Post("/:id/reanalyze", cfg.Threads.Reanalyze)
	threads.Post("/:id/snooze", cfg.Threads.Snooze)
	threads.Post("/:id/resolve", cfg.Threads.Resolve)

	unmatched := v1.Group("/unmatched")
	unmatched.Get("/", cfg.Unmatched.List)
	unmatched.Post("/:id/resolve", cfg.Unmatched.Resolve)
	unmatched.Post("/:id/ignore", cfg.Unmatched.Ignore)

	v1.Get("/assignments/rebalance", cfg.Assignments.Rebalance)

	notifications := v1.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
}
