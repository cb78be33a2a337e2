package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/booking"
	"github.com/traverum/booking-service/internal/embed"
	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/repository"
	"github.com/traverum/booking-service/internal/settlement"
	"github.com/traverum/booking-service/internal/token"
)

// fail maps a service error onto a status and JSON body.  Server side
// failures are logged with the cause; the client sees a generic message.
func fail(c echo.Context, log *slog.Logger, err error) error {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "field": verr.Field, "reason": verr.Reason})
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrTokenConsumed):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, repository.ErrNotFound), errors.Is(err, embed.ErrUnknownHotel):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, settlement.ErrNoConnectedAccount):
		return c.JSON(http.StatusConflict, echo.Map{"error": "supplier has no connected payment account"})
	case errors.Is(err, settlement.ErrSettlementInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "settlement in progress"})
	case errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid status transition"})
	case errors.Is(err, settlement.ErrTransferFailed):
		log.Error("supplier transfer failed", sl.Err(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "transfer failed"})
	case errors.Is(err, settlement.ErrRefundFailed):
		log.Error("refund failed", sl.Err(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "refund failed"})
	}
	log.Error("request failed", sl.Err(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
