package middleware

// identity.go resolves the caller established by JWTAuth.  It is the
// only place that knows how the identity is stored in the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id, or false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(ContextUserID).(uint64)
	return uid, ok && uid > 0
}

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) string {
	role, _ := c.Get(ContextRole).(string)
	return role
}

// subjectID converts a "sub" claim into a user id.
func subjectID(v any) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t >= 1 && t == float64(uint64(t)) {
			return uint64(t), true
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// rateKeyUser identifies the caller in rate-limit keys.  Anonymous
// callers share the "anon" bucket per IP.
func rateKeyUser(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
