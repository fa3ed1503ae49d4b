package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kanban-service/internal/api/http/handlers"
	"github.com/spec-kit/kanban-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Categories     *handlers.CategoriesHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes. Static segments are registered before
// the :id routes they would otherwise collide with.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protect := []fiber.Handler{cfg.AuthMiddleware, auth.RequireActiveUser()}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", append(protect, cfg.Users.Logout)...)
	authGroup.Get("/me", append(protect, cfg.Users.Me)...)
	authGroup.Put("/me", append(protect, cfg.Users.UpdateMe)...)
	authGroup.Get("/users", append(protect, cfg.Users.ListAssignable)...)

	categories := app.Group("/categories", protect...)
	categories.Get("/", cfg.Categories.ListCategories)
	categories.Post("/", cfg.Categories.CreateCategory)
	categories.Put("/reorder", cfg.Categories.ReorderCategories)
	categories.Get("/:id", cfg.Categories.GetCategory)
	categories.Put("/:id", cfg.Categories.UpdateCategory)
	categories.Delete("/:id", cfg.Categories.DeleteCategory)

	tickets := app.Group("/tickets", protect...)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Put("/drag-drop", cfg.Tickets.DragDrop)
	tickets.Get("/history/all", cfg.Tickets.Activity)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/history", cfg.Tickets.TicketHistory)
}
