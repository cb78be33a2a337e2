package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/booking"
	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/payment"
)

const maxWebhookBytes = 64 << 10

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payment.WebhookEvent, error)
}

// WebhookHandler receives payment provider events.
type WebhookHandler struct {
	Bookings Bookings
	Parser   WebhookParser
	Log      *slog.Logger
}

func NewWebhookHandler(b Bookings, p WebhookParser, log *slog.Logger) *WebhookHandler {
	if b == nil || p == nil || log == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	return &WebhookHandler{Bookings: b, Parser: p, Log: log}
}

// Stripe handles POST /v1/webhooks/stripe.  Events that can never apply
// (unknown reservation, reservation no longer awaiting payment) are
// acknowledged so the provider stops redelivering them; anything else that
// fails returns 500 and is retried by the provider.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	const op = "handler.WebhookHandler.Stripe"
	log := h.Log.With(slog.String("op", op))

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ev, err := h.Parser.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("webhook rejected", sl.Err(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}
	log = log.With(slog.String("event_id", ev.ID), slog.String("type", ev.Type))

	if ev.Type != payment.EventPaymentSucceeded || ev.ReservationID == "" {
		log.Debug("webhook ignored")
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	err = h.Bookings.PaymentSucceeded(c.Request().Context(), ev.ReservationID, ev.PaymentIntentID)
	switch {
	case err == nil:
		log.Info("payment recorded", slog.String("reservation_id", ev.ReservationID))
	case errors.Is(err, booking.ErrNotFound):
		log.Error("payment for unknown reservation", slog.String("reservation_id", ev.ReservationID))
	case errors.Is(err, booking.ErrInvalidTransition):
		log.Error("payment for reservation not awaiting payment", slog.String("reservation_id", ev.ReservationID), sl.Err(err))
	default:
		log.Error("payment not recorded", slog.String("reservation_id", ev.ReservationID), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
