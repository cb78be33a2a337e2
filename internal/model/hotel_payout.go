package model

import "time"

type PayoutStatus string

const (
    PayoutPending PayoutStatus = "pending"
    PayoutPaid    PayoutStatus = "paid"
)

// HotelPayout is the distributor share owed to a hotel for one completed
// reservation.  Payouts are settled outside the payment provider (bank
// transfer, invoice) and marked paid by an operator; pending→paid is the
// only transition and PaidAt is written once.
type HotelPayout struct {
    ID            string       `json:"id"`
    HotelID       string       `json:"hotel_id"`
    ReservationID string       `json:"reservation_id"`
    AmountCents   int64        `json:"amount_cents"`
    Currency      string       `json:"currency"`
    Status        PayoutStatus `json:"status"`
    PaymentRef    *string      `json:"payment_ref,omitempty"`
    PaymentMethod *string      `json:"payment_method,omitempty"`
    Notes         *string      `json:"notes,omitempty"`
    PaidAt        *time.Time   `json:"paid_at,omitempty"`
    CreatedAt     time.Time    `json:"created_at"`
}
