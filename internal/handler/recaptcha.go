package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/recaptcha"
)

type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (recaptcha.Result, error)
}

type RecaptchaHandler struct {
	Verifier CaptchaVerifier
	Log      *slog.Logger
}

func NewRecaptchaHandler(v CaptchaVerifier, log *slog.Logger) *RecaptchaHandler {
	if v == nil || log == nil {
		panic("nil dependency passed to NewRecaptchaHandler")
	}
	return &RecaptchaHandler{Verifier: v, Log: log}
}

// Verify handles POST /v1/recaptcha/verify.
func (h *RecaptchaHandler) Verify(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}

	res, err := h.Verifier.Verify(c.Request().Context(), req.Token, c.RealIP())
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, recaptcha.ErrMissingToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "token required"})
	case errors.Is(err, recaptcha.ErrLowScore), errors.Is(err, recaptcha.ErrRejected):
		h.Log.Info("recaptcha rejected", slog.Float64("score", res.Score), slog.Any("codes", res.Errors))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "recaptcha verification failed", "score": res.Score})
	}
	h.Log.Error("recaptcha verification unavailable", sl.Err(err))
	return c.JSON(http.StatusBadGateway, echo.Map{"success": false, "error": "verification unavailable"})
}
