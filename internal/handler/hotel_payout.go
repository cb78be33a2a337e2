package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/repository"
)

type HotelPayouts interface {
	MarkPaid(ctx context.Context, id string, d repository.PaidDetails) (*model.HotelPayout, error)
	ListByStatus(ctx context.Context, status model.PayoutStatus, limit int) ([]model.HotelPayout, error)
}

// HotelPayoutHandler is the operator API for hotel shares settled outside
// the payment provider.  It sits behind CronAuth.
type HotelPayoutHandler struct {
	Payouts HotelPayouts
	Log     *slog.Logger
}

func NewHotelPayoutHandler(p HotelPayouts, log *slog.Logger) *HotelPayoutHandler {
	if p == nil || log == nil {
		panic("nil dependency passed to NewHotelPayoutHandler")
	}
	return &HotelPayoutHandler{Payouts: p, Log: log}
}

type markPayoutReq struct {
	Status        string  `json:"status"`
	PaymentRef    *string `json:"paymentRef"`
	PaymentMethod *string `json:"paymentMethod"`
	Notes         *string `json:"notes"`
}

// MarkPaid handles PATCH /v1/hotel-payouts/:id.  paid is the only status a
// payout can move to; a second call is a conflict and leaves paid_at as it
// was.
func (h *HotelPayoutHandler) MarkPaid(c echo.Context) error {
	var req markPayoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Status != string(model.PayoutPaid) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be 'paid'"})
	}

	p, err := h.Payouts.MarkPaid(c.Request().Context(), c.Param("id"), repository.PaidDetails{
		PaymentRef:    trimmed(req.PaymentRef),
		PaymentMethod: trimmed(req.PaymentMethod),
		Notes:         trimmed(req.Notes),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "payout already paid", "payout": p})
		}
		return fail(c, h.Log, err)
	}
	h.Log.Info("hotel payout marked paid", slog.String("payout_id", p.ID), slog.String("hotel_id", p.HotelID))
	return c.JSON(http.StatusOK, echo.Map{"payout": p})
}

// List handles GET /v1/hotel-payouts?status=pending&limit=100.
func (h *HotelPayoutHandler) List(c echo.Context) error {
	status := model.PayoutStatus(c.QueryParam("status"))
	if status == "" {
		status = model.PayoutPending
	}
	if status != model.PayoutPending && status != model.PayoutPaid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}

	list, err := h.Payouts.ListByStatus(c.Request().Context(), status, limit)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if list == nil {
		list = []model.HotelPayout{}
	}
	return c.JSON(http.StatusOK, echo.Map{"payouts": list})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
