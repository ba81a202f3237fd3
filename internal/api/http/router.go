package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emberfall/emberfall-api/internal/api/http/handlers"
	"github.com/emberfall/emberfall-api/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.Middleware
	Realtime       []fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Users.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/assign", cfg.Tickets.AssignTicket)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("/", cfg.Staff.ListStaff)
	staff.Get("/tickets", cfg.Staff.ListStaffTickets)

	// the realtime channel authenticates in-band, not via the HTTP middleware
	app.Get("/ws", cfg.Realtime...)
}
