package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/round-seat-reservation/internal/handler"
	"github.com/iliyamo/round-seat-reservation/internal/middleware"
	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository/memory"
	"github.com/iliyamo/round-seat-reservation/internal/router"
	"github.com/iliyamo/round-seat-reservation/internal/service"
	"github.com/iliyamo/round-seat-reservation/internal/utils"
)

const secret = "handler-test-secret"

var t0 = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

type api struct {
	e   *echo.Echo
	mu  sync.Mutex
	now time.Time
}

func newAPI(t *testing.T) *api {
	t.Helper()
	a := &api{now: t0}
	st := memory.New()
	st.SetClock(func() time.Time {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.now
	})
	engine := service.New(st, service.DefaultPolicy(), nil, nil)

	a.e = echo.New()
	a.e.Validator = handler.NewRequestValidator()
	router.RegisterRoutes(a.e)
	router.RegisterRounds(a.e, handler.NewRoundHandler(engine), secret, nil)
	return a
}

func (a *api) advance(d time.Duration) {
	a.mu.Lock()
	a.now = a.now.Add(d)
	a.mu.Unlock()
}

func (a *api) do(t *testing.T, userID uint64, role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) createEvent(t *testing.T, capacity int) model.Event {
	t.Helper()
	body := `{"title":"friday round","capacity":` + itoa(capacity) + `,"starts_at":"2025-03-16T18:00:00Z"}`
	rec := a.do(t, 1000, middleware.RoleOrganizer, http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Event](t, rec)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func eventPath(ev model.Event, suffix string) string {
	return "/v1/events/" + itoa(int(ev.ID)) + suffix
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, 0, "", http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestCreateEventRequiresOrganizer(t *testing.T) {
	a := newAPI(t)
	body := `{"title":"x","capacity":4,"starts_at":"2025-03-16T18:00:00Z"}`

	rec := a.do(t, 0, "", http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, 5, middleware.RoleMember, http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, 5, middleware.RoleOrganizer, http.MethodPost, "/v1/events", `{"title":"x","capacity":0,"starts_at":"2025-03-16T18:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, 5, middleware.RoleOrganizer, http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	ev := decode[model.Event](t, rec)
	require.Equal(t, uint64(5), ev.HostUserID)
	require.Equal(t, 4, ev.Capacity)
}

func TestJoinLeaveAndRooms(t *testing.T) {
	a := newAPI(t)
	ev := a.createEvent(t, 2)

	rec := a.do(t, 1, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[model.Participant](t, rec)
	require.Equal(t, model.PaymentPending, p.PaymentStatus)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, 2, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, 3, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodGet, eventPath(ev, "/rooms"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[service.RoomsSnapshot](t, rec)
	require.Len(t, snap.Rooms, 1)
	require.Len(t, snap.Rooms[0].Members, 2)
	require.Equal(t, uint64(1), snap.Rooms[0].Host.UserID)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodDelete, eventPath(ev, "/participants/me"), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, 1, middleware.RoleMember, http.MethodDelete, eventPath(ev, "/participants/me"), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, 3, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodPost, "/v1/events/999/join", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, 3, middleware.RoleMember, http.MethodPost, "/v1/events/abc/join", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKickAndMarkPaidRoles(t *testing.T) {
	a := newAPI(t)
	ev := a.createEvent(t, 4)
	for _, u := range []uint64{1, 2} {
		rec := a.do(t, u, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := a.do(t, 1, middleware.RoleMember, http.MethodDelete, eventPath(ev, "/participants/2"), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, 1000, middleware.RoleOrganizer, http.MethodDelete, eventPath(ev, "/participants/2"), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, eventPath(ev, "/participants/1/paid"), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, 77, middleware.RolePayment, http.MethodPost, eventPath(ev, "/participants/2/paid"), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, 77, middleware.RolePayment, http.MethodPost, eventPath(ev, "/participants/1/paid"), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodGet, eventPath(ev, "/participants"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	ps := decode[[]model.Participant](t, rec)
	require.Len(t, ps, 1)
	require.Equal(t, model.PaymentPaid, ps[0].PaymentStatus)
}

func TestHoldEndpoints(t *testing.T) {
	a := newAPI(t)
	ev := a.createEvent(t, 4)
	rec := a.do(t, 1, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	holdPath := eventPath(ev, "/rooms/1/slots/2/hold")
	rec = a.do(t, 1, middleware.RoleMember, http.MethodGet, holdPath, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, 2, middleware.RoleMember, http.MethodPost, holdPath, `{"invitee_user_id":9}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, holdPath, `{"invitee_user_id":9}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	h := decode[model.Hold](t, rec)
	require.NotEmpty(t, h.Token)
	require.True(t, h.For(9))

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, holdPath, `{"invitee_user_id":8}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, eventPath(ev, "/rooms/2/slots/0/hold"), `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, 5, middleware.RoleMember, http.MethodGet, holdPath, "")
	require.Equal(t, http.StatusOK, rec.Code)

	a.advance(6*time.Hour + time.Second)
	rec = a.do(t, 5, middleware.RoleMember, http.MethodGet, holdPath, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, holdPath, `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, 1, middleware.RoleMember, http.MethodDelete, holdPath, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, 1, middleware.RoleMember, http.MethodDelete, holdPath, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreReservationAndLedger(t *testing.T) {
	a := newAPI(t)
	ev := a.createEvent(t, 4)
	path := eventPath(ev, "/pre-reservations")

	rec := a.do(t, 3, middleware.RoleMember, http.MethodPost, path, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	applied := decode[struct {
		PreReservation model.PreReservation `json:"pre_reservation"`
		LedgerEntry    model.LedgerEntry    `json:"ledger_entry"`
	}](t, rec)
	require.Equal(t, uint64(3), applied.PreReservation.UserID)
	require.Equal(t, model.LedgerManner, applied.LedgerEntry.Kind)
	require.Positive(t, applied.LedgerEntry.Amount)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodPost, path, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]model.PreReservation](t, rec), 1)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, 3, middleware.RoleMember, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodGet, "/v1/me/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[model.Balance](t, rec)
	require.Zero(t, b.MannerScore)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodGet, "/v1/me/ledger?kind=manner&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]model.LedgerEntry](t, rec)
	require.Len(t, entries, 1)
	require.Negative(t, entries[0].Amount)
	require.Zero(t, entries[0].BalanceAfter)

	rec = a.do(t, 3, middleware.RoleMember, http.MethodGet, "/v1/me/ledger?kind=karma", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, 3, middleware.RoleMember, http.MethodGet, "/v1/me/ledger?limit=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSweep(t *testing.T) {
	a := newAPI(t)
	ev := a.createEvent(t, 4)
	rec := a.do(t, 1, middleware.RoleMember, http.MethodPost, eventPath(ev, "/join"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodPost, "/v1/admin/sweep", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	a.advance(3*time.Hour + time.Minute)
	rec = a.do(t, 99, middleware.RoleAdmin, http.MethodPost, "/v1/admin/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Evicted []service.Eviction `json:"evicted"`
		Failed  []string           `json:"failed"`
	}](t, rec)
	require.Len(t, out.Evicted, 1)
	require.Equal(t, uint64(1), out.Evicted[0].UserID)
	require.Equal(t, int64(-20), out.Evicted[0].PointsBalance)
	require.Empty(t, out.Failed)

	rec = a.do(t, 1, middleware.RoleMember, http.MethodGet, "/v1/me/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[model.Balance](t, rec)
	require.Equal(t, int64(-20), b.Points)
	require.Equal(t, int64(-30), b.MannerScore)
}
