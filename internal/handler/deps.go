package handler

import (
	"context"
	"time"

	"github.com/traverum/booking-service/internal/booking"
	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/payment"
	"github.com/traverum/booking-service/internal/settlement"
)

// Bookings is the part of booking.Service the handlers drive.
type Bookings interface {
	Create(ctx context.Context, in booking.CreateInput) (*model.Reservation, error)
	Checkout(ctx context.Context, id string) (payment.Intent, error)
	PaymentSucceeded(ctx context.Context, id, paymentRef string) error
	Complete(ctx context.Context, id string) (*model.Reservation, settlement.Result, error)
	Cancel(ctx context.Context, id string) (*model.Reservation, error)
	PendingRequests(ctx context.Context, supplierID string) ([]model.Reservation, error)
	Confirm(ctx context.Context, supplierID, id string) (*model.Reservation, booking.Links, error)
	Decline(ctx context.Context, supplierID, id string) (*model.Reservation, error)
}

// TokenLedger makes action tokens single use.
type TokenLedger interface {
	Consume(ctx context.Context, raw string, expiresAt time.Time) error
	Release(ctx context.Context, raw string) error
}

var _ Bookings = (*booking.Service)(nil)
