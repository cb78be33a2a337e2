package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/embed"
)

type WidgetSource interface {
	Widget(ctx context.Context, slug string) (embed.Widget, error)
}

type EmbedHandler struct {
	Widgets WidgetSource
	Log     *slog.Logger
}

func NewEmbedHandler(w WidgetSource, log *slog.Logger) *EmbedHandler {
	if w == nil || log == nil {
		panic("nil dependency passed to NewEmbedHandler")
	}
	return &EmbedHandler{Widgets: w, Log: log}
}

// Widget handles GET /v1/embed/:slug.
func (h *EmbedHandler) Widget(c echo.Context) error {
	w, err := h.Widgets.Widget(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=30")
	return c.JSON(http.StatusOK, w)
}

// Script handles GET /embed.js.
func Script(c echo.Context) error {
	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age=3600")
	h.Set("X-Content-Type-Options", "nosniff")
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", embed.Script())
}
