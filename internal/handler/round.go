package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/round-seat-reservation/internal/service"
)

// RoundHandler exposes the round engine over HTTP.  All methods assume
// that JWT authentication and role validation has already been
// performed by middleware; the caller's identity always comes from the
// token, never from the request body.
type RoundHandler struct {
	Engine *service.Engine
}

// NewRoundHandler constructs a RoundHandler.  The engine must be non-nil.
func NewRoundHandler(engine *service.Engine) *RoundHandler {
	if engine == nil {
		panic("nil engine passed to NewRoundHandler")
	}
	return &RoundHandler{Engine: engine}
}

type createEventRequest struct {
	Title    string    `json:"title" validate:"required,max=200"`
	Capacity int       `json:"capacity" validate:"required,min=1,max=10000"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

// CreateEvent handles POST /v1/events.  The caller becomes the event
// host.
func (h *RoundHandler) CreateEvent(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createEventRequest
	if err := bindValid(c, &body); err != nil {
		return err
	}
	ev, err := h.Engine.CreateEvent(c.Request().Context(), userID, body.Title, body.Capacity, body.StartsAt)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// GetEvent handles GET /v1/events/:id.
func (h *RoundHandler) GetEvent(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Engine.Event(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Rooms handles GET /v1/events/:id/rooms: the derived room partition,
// room hosts and live holds.
func (h *RoundHandler) Rooms(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	snap, err := h.Engine.Rooms(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
