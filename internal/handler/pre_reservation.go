package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ApplyPreReservation handles POST /v1/events/:id/pre-reservations.
func (h *RoundHandler) ApplyPreReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	pr, entry, err := h.Engine.ApplyPreReservation(c.Request().Context(), eventID, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"pre_reservation": pr, "ledger_entry": entry})
}

// CancelPreReservation handles DELETE /v1/events/:id/pre-reservations.
func (h *RoundHandler) CancelPreReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	entry, err := h.Engine.CancelPreReservation(c.Request().Context(), eventID, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ledger_entry": entry})
}

// ListPreReservations handles GET /v1/events/:id/pre-reservations.
func (h *RoundHandler) ListPreReservations(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	pool, err := h.Engine.ListPreReservations(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, pool)
}
