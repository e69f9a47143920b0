package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/round-seat-reservation/internal/handler"    // handlers that call into the round engine
	"github.com/iliyamo/round-seat-reservation/internal/middleware" // JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterRounds registers every authenticated round endpoint under /v1.
// Tokens come from the identity provider and are verified with
// jwtSecret.  limiter, when non-nil, runs after authentication so that
// buckets are keyed by user.
func RegisterRounds(e *echo.Echo, h *handler.RoundHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleMember, middleware.RoleOrganizer, middleware.RolePayment, middleware.RoleAdmin),
	)
	if limiter != nil {
		g.Use(limiter)
	}

	// ---- Events ----
	g.POST("/events", h.CreateEvent, middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin))
	g.GET("/events/:id", h.GetEvent)
	g.GET("/events/:id/rooms", h.Rooms)
	g.GET("/events/:id/participants", h.Participants)

	// ---- Participant lifecycle ----
	g.POST("/events/:id/join", h.Join)
	g.POST("/events/:id/invite", h.Invite)
	g.DELETE("/events/:id/participants/me", h.Leave)
	g.DELETE("/events/:id/participants/:userId", h.Kick)
	g.POST("/events/:id/participants/:userId/paid", h.MarkPaid, middleware.RequireRole(middleware.RolePayment))

	// ---- Slot holds ----
	g.POST("/events/:id/rooms/:room/slots/:slot/hold", h.PlaceHold)
	g.GET("/events/:id/rooms/:room/slots/:slot/hold", h.GetHold)
	g.DELETE("/events/:id/rooms/:room/slots/:slot/hold", h.CancelHold)

	// ---- Pre-reservation pool ----
	g.POST("/events/:id/pre-reservations", h.ApplyPreReservation)
	g.DELETE("/events/:id/pre-reservations", h.CancelPreReservation)
	g.GET("/events/:id/pre-reservations", h.ListPreReservations)

	// ---- Ledger ----
	g.GET("/me/balance", h.Balance)
	g.GET("/me/ledger", h.Ledger)

	// ---- Operations ----
	g.POST("/admin/sweep", h.Sweep, middleware.RequireRole(middleware.RoleAdmin))
}
