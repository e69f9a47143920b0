package handler // handler defines http handlers

import (
	"errors"   // errors.Is maps sentinel errors to statuses
	"net/http" // HTTP status codes
	"strconv"  // strconv converts path parameters to numbers

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/middleware"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
)

// RequestValidator adapts go-playground/validator to echo.Validator so
// that handlers can call c.Validate on bound request bodies.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator for echo.Echo.Validator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (r *RequestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}

// bindValid binds the request body into dst and validates it.  The
// returned error is already an HTTP response.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return nil
}

// getUserID extracts the authenticated caller set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if uid, ok := middleware.UserID(c); ok {
		return uid, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

// paramInt parses a non-negative integer path parameter.
func paramInt(c echo.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	return n, err == nil && n >= 0
}

// statusOf maps engine errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, repository.ErrEventFull),
		errors.Is(err, repository.ErrAlreadyJoined),
		errors.Is(err, repository.ErrAlreadyReserved),
		errors.Is(err, repository.ErrHoldConflict),
		errors.Is(err, repository.ErrSlotOccupied),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrHoldNotFound),
		errors.Is(err, repository.ErrNotJoined),
		errors.Is(err, repository.ErrNotReserved):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidCapacity),
		errors.Is(err, repository.ErrSlotOutOfRange),
		errors.Is(err, repository.ErrInvalidLedgerKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error response.  Unexpected errors are
// logged and hidden from the client.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "handler").Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
