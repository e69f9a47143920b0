package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type inviteRequest struct {
	UserID uint64 `json:"user_id" validate:"required"`
}

// Join handles POST /v1/events/:id/join.  It returns 201 with the new
// participant, 409 when the event is full or the caller already joined.
func (h *RoundHandler) Join(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	p, err := h.Engine.Join(c.Request().Context(), eventID, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Leave handles DELETE /v1/events/:id/participants/me.  Leaving twice
// is not an error.
func (h *RoundHandler) Leave(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.Leave(c.Request().Context(), eventID, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Invite handles POST /v1/events/:id/invite with body {"user_id": n}.
func (h *RoundHandler) Invite(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body inviteRequest
	if err := bindValid(c, &body); err != nil {
		return err
	}
	p, err := h.Engine.Invite(c.Request().Context(), eventID, userID, body.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Kick handles DELETE /v1/events/:id/participants/:userId.
func (h *RoundHandler) Kick(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	targetID, ok := paramID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.Engine.Kick(c.Request().Context(), eventID, userID, targetID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkPaid handles POST /v1/events/:id/participants/:userId/paid.  Only
// the payment collaborator's service account reaches it.
func (h *RoundHandler) MarkPaid(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	targetID, ok := paramID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.Engine.MarkPaid(c.Request().Context(), eventID, targetID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Participants handles GET /v1/events/:id/participants.
func (h *RoundHandler) Participants(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ps, err := h.Engine.Participants(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ps)
}
