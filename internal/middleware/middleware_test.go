package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/round-seat-reservation/internal/config"
	"github.com/iliyamo/round-seat-reservation/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	uid, ok := UserID(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": Role(c)})
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret))
	g.GET("/me", whoami)
	g.GET("/admin", whoami, RequireRole(RoleAdmin))

	tok, err := utils.NewAccessToken(secret, 42, RoleMember, time.Minute)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/v1/me", tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":42,"role":"MEMBER"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/v1/admin", tok.Token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodGet, "/v1/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := utils.NewAccessToken("other-secret", 42, RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/v1/me", forged.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := utils.NewAccessToken(secret, 42, RoleMember, -time.Minute)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/v1/me", expired.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	anonymous, err := utils.NewAccessToken(secret, 0, RoleMember, time.Minute)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/v1/me", anonymous.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubjectID(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want uint64
		ok   bool
	}{
		{float64(7), 7, true},
		{"7", 7, true},
		{float64(1.5), 0, false},
		{float64(0), 0, false},
		{"abc", 0, false},
		{nil, 0, false},
	} {
		got, ok := subjectID(tc.in)
		require.Equal(t, tc.ok, ok, "%v", tc.in)
		require.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func limitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func limited(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") }, mw)
	return e
}

func TestTokenBucketRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	e := limited(NewTokenBucket(limitConfig(), rdb))

	require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	rec := serve(e, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Len(t, mr.Keys(), 1)
}

func TestTokenBucketLocalFallback(t *testing.T) {
	e := limited(NewTokenBucket(limitConfig(), nil))

	require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	rec := serve(e, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limitConfig()
	cfg.Enabled = false
	e := limited(NewTokenBucket(cfg, nil))
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	}
}
