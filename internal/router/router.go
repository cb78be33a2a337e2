package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/traverum/booking-service/internal/config"
	"github.com/traverum/booking-service/internal/handler"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/middleware"
	"github.com/traverum/booking-service/internal/ratelimit"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Reservations *handler.ReservationHandler
	Actions      *handler.BookingActionHandler
	Webhooks     *handler.WebhookHandler
	Partners     *handler.PartnerHandler
	Payouts      *handler.HotelPayoutHandler
	Recaptcha    *handler.RecaptchaHandler
	Embed        *handler.EmbedHandler
}

// Deps are the shared pieces route middleware needs.
type Deps struct {
	RateLimits config.RateLimitConfig
	Cache      config.CacheConfig
	Redis      *redis.Client // nil when Redis is unavailable
	Counter    ratelimit.Counter
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

// RegisterRoutes registers operational endpoints that need no auth.
func RegisterRoutes(e *echo.Echo, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/embed.js", handler.Script)
}

// RegisterPublic registers the guest facing endpoints: booking requests,
// the signed action links, the payment webhook, reCAPTCHA and the widget.
func RegisterPublic(e *echo.Echo, h Handlers, d Deps) {
	reservations := limit(d, d.RateLimits.Reservations, "reservations")
	embedLimit := limit(d, d.RateLimits.Embed, "embed")

	e.POST("/v1/reservations", h.Reservations.Create, reservations)

	b := e.Group("/v1/bookings/:id")
	b.GET("/complete", h.Actions.Complete)
	b.PATCH("/complete", h.Actions.Complete)
	b.GET("/cancel", h.Actions.Cancel)
	b.PATCH("/cancel", h.Actions.Cancel)
	b.GET("/checkout", h.Actions.Checkout)
	b.POST("/checkout", h.Actions.Checkout)

	e.POST("/v1/webhooks/stripe", h.Webhooks.Stripe)
	e.POST("/v1/recaptcha/verify", h.Recaptcha.Verify)
	e.GET("/v1/embed/:slug", h.Embed.Widget, embedLimit, middleware.ResponseCache(d.Cache, d.Redis, d.Log))
}

// RegisterPartner registers the supplier dashboard.  Login is open; the
// rest requires a partner JWT.
func RegisterPartner(e *echo.Echo, h *handler.PartnerHandler, jwtSecret string) {
	e.POST("/v1/partner/auth/login", h.Login)

	g := e.Group("/v1/partner", middleware.PartnerAuth(jwtSecret))
	g.GET("/requests", h.Requests)
	g.POST("/reservations/:id/confirm", h.Confirm)
	g.POST("/reservations/:id/decline", h.Decline)
}

// RegisterAdmin registers operator endpoints guarded by CRON_SECRET.
func RegisterAdmin(e *echo.Echo, h *handler.HotelPayoutHandler, cronSecret string) {
	g := e.Group("/v1/hotel-payouts", middleware.CronAuth(cronSecret))
	g.GET("", h.List)
	g.PATCH("/:id", h.MarkPaid)
}

func limit(d Deps, p config.RateLimitPolicy, name string) echo.MiddlewareFunc {
	if !d.RateLimits.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	l := ratelimit.New(d.Counter, d.RateLimits.Prefix, name, p.Limit, p.Window)
	return middleware.RateLimit(l, d.Log, d.Metrics)
}
