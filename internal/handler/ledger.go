package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/service"
)

// Balance handles GET /v1/me/balance.
func (h *RoundHandler) Balance(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	b, err := h.Engine.Balance(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Ledger handles GET /v1/me/ledger?kind=points|manner&limit=n, newest
// entries first.
func (h *RoundHandler) Ledger(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	kind := model.LedgerKind(c.QueryParam("kind"))
	if kind == "" {
		kind = model.LedgerPoints
	}
	limit := service.DefaultHistoryLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}
	entries, err := h.Engine.History(c.Request().Context(), userID, kind, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}
