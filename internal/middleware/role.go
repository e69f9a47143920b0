package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// Roles carried in the JWT "role" claim.
const (
	RoleMember    = "MEMBER"    // regular user: joins, leaves, holds, pre-reserves
	RoleOrganizer = "ORGANIZER" // may create events; every member permission too
	RolePayment   = "PAYMENT"   // payment collaborator service account
	RoleAdmin     = "ADMIN"     // operators: manual sweeps
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  If the user's role
// is not in the allowed set, the request is aborted with a 403
// Forbidden response.  It assumes JWTAuth ran earlier in the chain.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
