package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/api/http/handlers"
	"github.com/hubportal/hub/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	RequestTypes   *handlers.RequestTypesHandler
	ApprovalConfig *handlers.ApprovalConfigHandler
	Aggregation    *handlers.AggregationHandler
	Tenants        *handlers.TenantsHandler
	AuthMiddleware *auth.AuthMiddleware
	Enforcer       *auth.Enforcer
	ReplyLimiter   fiber.Handler
	Metrics        fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := protected.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/summary", cfg.Tickets.Summary)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.Finalize)
	reply := []fiber.Handler{cfg.Tickets.Reply}
	if cfg.ReplyLimiter != nil {
		reply = append([]fiber.Handler{cfg.ReplyLimiter}, reply...)
	}
	tickets.Post("/:id/messages", reply...)
	tickets.Post("/:id/assumir", cfg.Tickets.Claim)
	tickets.Post("/:id/encaminhar", cfg.Tickets.Forward)
	tickets.Post("/:id/approve", cfg.Tickets.Approve)
	tickets.Post("/:id/reject", cfg.Tickets.Reject)
	tickets.Post("/:id/resubmit", cfg.Tickets.Resubmit)
	tickets.Post("/:id/read", cfg.Tickets.MarkRead)

	protected.Get("/notifications", cfg.Notifications.List)
	protected.Get("/notifications/count", cfg.Notifications.Count)

	helpdesk := protected.Group("/helpdesk")
	helpdesk.Get("/tipos", cfg.RequestTypes.List)
	helpdesk.Post("/tipos", cfg.RequestTypes.Create)
	helpdesk.Put("/tipos/:id", cfg.RequestTypes.Update)
	helpdesk.Delete("/tipos/:id", cfg.RequestTypes.Delete)
	helpdesk.Patch("/tipos/:id/status", cfg.RequestTypes.SetStatus)

	helpdesk.Get("/queues", cfg.Aggregation.Queues)
	helpdesk.Get("/areas/summary", cfg.Aggregation.AreasSummary)
	helpdesk.Get("/tree", cfg.Aggregation.Tree)

	approval := helpdesk.Group("/approval-config", cfg.Enforcer.RequireRoute())
	approval.Get("/", cfg.ApprovalConfig.List)
	approval.Post("/", cfg.ApprovalConfig.Create)
	approval.Patch("/:id", cfg.ApprovalConfig.Update)
	approval.Delete("/:id", cfg.ApprovalConfig.Delete)

	admin := protected.Group("/admin", cfg.Enforcer.RequireRoute())
	admin.Post("/tenants/:clientId/provision", cfg.Tenants.Provision)
	admin.Get("/tenants/:clientId", cfg.Tenants.Status)
}
