package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/traverum/booking-service/internal/booking"
)

// ReservationHandler serves the guest facing booking request endpoint.
type ReservationHandler struct {
	Bookings Bookings
	Log      *slog.Logger
}

func NewReservationHandler(b Bookings, log *slog.Logger) *ReservationHandler {
	if b == nil || log == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Bookings: b, Log: log}
}

type createReservationReq struct {
	ExperienceID  string `json:"experience_id" validate:"required,max=64"`
	HotelID       string `json:"hotel_id" validate:"required,max=64"`
	GuestName     string `json:"guest_name" validate:"required,max=200"`
	GuestEmail    string `json:"guest_email" validate:"required,email,max=254"`
	GuestPhone    string `json:"guest_phone" validate:"omitempty,max=40"`
	Participants  int    `json:"participants" validate:"required,min=1,max=100"`
	RequestedDate string `json:"requested_date" validate:"omitempty,datetime=2006-01-02"`
	RequestedTime string `json:"requested_time" validate:"omitempty,datetime=15:04"`
	SessionID     string `json:"session_id" validate:"omitempty,max=64"`
}

// Create handles POST /v1/reservations.  The request is stored as pending
// and the supplier has until response_deadline to answer.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	r, err := h.Bookings.Create(c.Request().Context(), booking.CreateInput{
		ExperienceID:  strings.TrimSpace(req.ExperienceID),
		HotelID:       strings.TrimSpace(req.HotelID),
		GuestName:     strings.TrimSpace(req.GuestName),
		GuestEmail:    strings.ToLower(strings.TrimSpace(req.GuestEmail)),
		GuestPhone:    strings.TrimSpace(req.GuestPhone),
		Participants:  req.Participants,
		RequestedDate: req.RequestedDate,
		RequestedTime: req.RequestedTime,
		SessionID:     strings.TrimSpace(req.SessionID),
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, r)
}
