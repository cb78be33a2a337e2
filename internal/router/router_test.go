package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/traverum/booking-service/internal/config"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/ratelimit"
)

func testServer() *echo.Echo {
	m := metrics.New()
	d := Deps{
		RateLimits: config.RateLimitConfig{
			Enabled:      true,
			Prefix:       "rl",
			Reservations: config.RateLimitPolicy{Limit: 10, Window: time.Minute},
			Embed:        config.RateLimitPolicy{Limit: 30, Window: time.Minute},
		},
		Counter: ratelimit.NewMemoryCounter(),
		Metrics: m,
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	e := echo.New()
	RegisterRoutes(e, m)
	RegisterPublic(e, Handlers{}, d)
	RegisterPartner(e, nil, "jwt-secret")
	RegisterAdmin(e, nil, "cron-secret")
	return e
}

func TestRoutesRegistered(t *testing.T) {
	e := testServer()
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"GET /embed.js",
		"POST /v1/reservations",
		"GET /v1/bookings/:id/complete",
		"PATCH /v1/bookings/:id/complete",
		"GET /v1/bookings/:id/cancel",
		"PATCH /v1/bookings/:id/cancel",
		"POST /v1/bookings/:id/checkout",
		"POST /v1/webhooks/stripe",
		"POST /v1/recaptcha/verify",
		"GET /v1/embed/:slug",
		"POST /v1/partner/auth/login",
		"GET /v1/partner/requests",
		"POST /v1/partner/reservations/:id/confirm",
		"POST /v1/partner/reservations/:id/decline",
		"GET /v1/hotel-payouts",
		"PATCH /v1/hotel-payouts/:id",
	} {
		assert.True(t, got[want], want)
	}
}

func TestProtectedGroupsRejectAnonymous(t *testing.T) {
	e := testServer()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/partner/requests"},
		{http.MethodPost, "/v1/partner/reservations/res-1/confirm"},
		{http.MethodPatch, "/v1/hotel-payouts/po-1"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := testServer()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
