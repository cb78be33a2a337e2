package middleware

import (
    "log/slog"
    "math"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/traverum/booking-service/internal/lib/logger/sl"
    "github.com/traverum/booking-service/internal/metrics"
    "github.com/traverum/booking-service/internal/ratelimit"
)

// RateLimit rejects requests once the client has used up the limiter's
// budget.  Counter store failures let the request through.
func RateLimit(l *ratelimit.Limiter, log *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
    log = log.With(slog.String("policy", l.Name()))

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := ratelimit.ClientKey(c.Request())

            d, err := l.Allow(c.Request().Context(), key)
            if err != nil {
                log.Warn("rate limit check failed, allowing request", slog.String("client", key), sl.Err(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
            h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

            if !d.Allowed {
                secs := int(math.Ceil(d.RetryAfter.Seconds()))
                h.Set("Retry-After", strconv.Itoa(secs))
                m.RateLimited.WithLabelValues(l.Name()).Inc()
                log.Debug("rate limited", slog.String("client", key))
                return c.JSON(http.StatusTooManyRequests, map[string]any{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}
