package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbox/internal/api/http/handlers"
	"github.com/spec-kit/ticketbox/internal/auth"
	"github.com/spec-kit/ticketbox/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	Tickets        *handlers.TicketsHandler
	Actions        *handlers.ActionsHandler
	Settings       *handlers.SettingsHandler
	Duty           *handlers.DutyHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Mutating endpoints require the ADMIN
// dashboard role; reads allow any authenticated dashboard user.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Session.Login)

	guilds := app.Group("/guilds/:guildID", cfg.AuthMiddleware.Handle, auth.RequireRole())
	guilds.Get("/tickets", cfg.Tickets.ListTickets)
	guilds.Get("/settings", cfg.Settings.GetSettings)
	guilds.Patch("/settings", auth.RequireRole(domain.DashboardRoleAdmin), cfg.Settings.UpdateSettings)
	guilds.Get("/duty", cfg.Duty.ListOnDuty)
	guilds.Put("/duty/:userID", auth.RequireRole(domain.DashboardRoleAdmin), cfg.Duty.SetDuty)

	app.Get("/tickets/:id", cfg.AuthMiddleware.Handle, auth.RequireRole(), cfg.Tickets.GetTicket)

	app.Post("/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.DashboardRoleAdmin), cfg.Actions.CreateTicket)

	channels := app.Group("/channels/:channelID", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.DashboardRoleAdmin))
	channels.Post("/actions/:action", cfg.Actions.Transition)
	channels.Post("/participants", cfg.Actions.AddParticipant)
	channels.Delete("/participants/:userID", cfg.Actions.RemoveParticipant)
}
