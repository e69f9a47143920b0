package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type placeHoldRequest struct {
	// InviteeUserID is optional; without it the hold is open and only
	// the holder's own invite can fill it.
	InviteeUserID uint64 `json:"invitee_user_id"`
}

// slotParams reads :id, :room and :slot.
func slotParams(c echo.Context) (eventID uint64, room, slot int, ok bool) {
	if eventID, ok = paramID(c, "id"); !ok {
		return 0, 0, 0, false
	}
	if room, ok = paramInt(c, "room"); !ok {
		return 0, 0, 0, false
	}
	if slot, ok = paramInt(c, "slot"); !ok {
		return 0, 0, 0, false
	}
	return eventID, room, slot, true
}

// PlaceHold handles POST /v1/events/:id/rooms/:room/slots/:slot/hold.
// The caller must currently host the room.
func (h *RoundHandler) PlaceHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, room, slot, ok := slotParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot coordinate"})
	}
	var body placeHoldRequest
	if err := bindValid(c, &body); err != nil {
		return err
	}
	hold, err := h.Engine.PlaceHold(c.Request().Context(), eventID, room, slot, userID, body.InviteeUserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, hold)
}

// GetHold handles GET on the hold route.  It returns the live hold or 404.
func (h *RoundHandler) GetHold(c echo.Context) error {
	eventID, room, slot, ok := slotParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot coordinate"})
	}
	hold, err := h.Engine.HoldAt(c.Request().Context(), eventID, room, slot)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// CancelHold handles DELETE on the hold route.
func (h *RoundHandler) CancelHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, room, slot, ok := slotParams(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot coordinate"})
	}
	if err := h.Engine.CancelHold(c.Request().Context(), eventID, room, slot, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
