package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/token"
)

// BookingActionHandler serves the links sent to guests and suppliers.  Each
// request is authorised by the ?token= query parameter, which must be bound
// to the reservation in the path and to the action being taken.
type BookingActionHandler struct {
	Bookings Bookings
	Tokens   *token.Service
	Ledger   TokenLedger
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

func NewBookingActionHandler(b Bookings, tokens *token.Service, ledger TokenLedger, m *metrics.Metrics, log *slog.Logger) *BookingActionHandler {
	if b == nil || tokens == nil || ledger == nil || m == nil || log == nil {
		panic("nil dependency passed to NewBookingActionHandler")
	}
	return &BookingActionHandler{Bookings: b, Tokens: tokens, Ledger: ledger, Metrics: m, Log: log}
}

// Complete handles GET|PATCH /v1/bookings/:id/complete.
func (h *BookingActionHandler) Complete(c echo.Context) error {
	return h.once(c, token.ActionComplete, func(ctx context.Context, id string) (interface{}, error) {
		r, res, err := h.Bookings.Complete(ctx, id)
		if err != nil {
			return nil, err
		}
		return echo.Map{"reservation": r, "settlement": res}, nil
	})
}

// Cancel handles GET|PATCH /v1/bookings/:id/cancel.  Paid reservations are
// refunded in full.
func (h *BookingActionHandler) Cancel(c echo.Context) error {
	return h.once(c, token.ActionCancel, func(ctx context.Context, id string) (interface{}, error) {
		r, err := h.Bookings.Cancel(ctx, id)
		if err != nil {
			return nil, err
		}
		return echo.Map{"reservation": r}, nil
	})
}

// Checkout handles POST /v1/bookings/:id/checkout and returns the client
// secret the widget needs to confirm the card payment.  Pay tokens stay
// reusable so the guest can reload the payment page.
func (h *BookingActionHandler) Checkout(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.authorize(c, id, token.ActionPay); err != nil {
		return fail(c, h.Log, err)
	}
	in, err := h.Bookings.Checkout(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment_intent_id": in.ID, "client_secret": in.ClientSecret})
}

// once runs fn behind a single-use token.  When fn fails the reservation is
// unchanged, so the token is handed back for another try.
func (h *BookingActionHandler) once(c echo.Context, action string, fn func(ctx context.Context, id string) (interface{}, error)) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	raw := c.QueryParam("token")

	p, err := h.authorize(c, id, action)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Ledger.Consume(ctx, raw, p.ExpiresAt()); err != nil {
		if errors.Is(err, token.ErrTokenConsumed) {
			h.Metrics.TokenRejections.WithLabelValues("consumed").Inc()
			return fail(c, h.Log, err)
		}
		h.Log.Warn("token ledger unavailable", slog.String("reservation_id", id), sl.Err(err))
	}

	out, err := fn(ctx, id)
	if err != nil {
		if rerr := h.Ledger.Release(context.WithoutCancel(ctx), raw); rerr != nil {
			h.Log.Warn("token release failed", slog.String("reservation_id", id), sl.Err(rerr))
		}
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookingActionHandler) authorize(c echo.Context, id, action string) (token.Payload, error) {
	p, res := h.Tokens.Inspect(c.QueryParam("token"))
	if res != token.OK {
		h.Metrics.TokenRejections.WithLabelValues(res.String()).Inc()
		return token.Payload{}, token.ErrInvalidToken
	}
	if p.ID != id || p.Action != action {
		h.Metrics.TokenRejections.WithLabelValues("scope_mismatch").Inc()
		return token.Payload{}, token.ErrInvalidToken
	}
	return p, nil
}
