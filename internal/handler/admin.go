package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/round-seat-reservation/internal/service"
)

// Sweep handles POST /v1/admin/sweep: one timeout pass at the store's
// clock.  Partial failures are reported next to the evictions that
// succeeded; the failed rows are retried by the next pass.
func (h *RoundHandler) Sweep(c echo.Context) error {
	evictions, err := h.Engine.SweepNow(c.Request().Context())
	var sweepErr *service.SweepError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"evicted": evictions, "failed": []string{}})
	case errors.As(err, &sweepErr):
		failed := make([]string, 0, len(sweepErr.Rows))
		for _, r := range sweepErr.Rows {
			failed = append(failed, r.Error())
		}
		return c.JSON(http.StatusOK, echo.Map{"evicted": evictions, "failed": failed})
	}
	return fail(c, err)
}
