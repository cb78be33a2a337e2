package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
    StatusPending        Status = "pending"
    StatusConfirmed      Status = "confirmed"
    StatusDeclined       Status = "declined"
    StatusPendingPayment Status = "pending_payment"
    StatusCompleted      Status = "completed"
    StatusCancelled      Status = "cancelled"
)

// Reservation records a guest's request for an experience sold through a
// hotel widget.  Money is kept in minor currency units.
//
// Fields:
//  ID               – UUID primary key.
//  ExperienceID     – experience being booked.
//  HotelID          – distributor partner whose widget produced the booking.
//  GuestName        – guest contact name.
//  GuestEmail       – guest contact email.
//  GuestPhone       – optional phone number.
//  Participants     – number of people.
//  TotalCents       – price for all participants in minor units.
//  Currency         – ISO currency code (lower case, as Stripe expects).
//  RequestedDate    – requested day (YYYY-MM-DD), empty when SessionID is set.
//  RequestedTime    – requested time of day (HH:MM), optional.
//  SessionID        – scheduled session reference, optional.
//  ResponseDeadline – when the supplier must answer a pending request.
//  Status           – lifecycle state.
//  PaymentRef       – payment intent id once the guest has paid.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
    ID               string    `json:"id"`
    ExperienceID     string    `json:"experience_id"`
    HotelID          string    `json:"hotel_id"`
    GuestName        string    `json:"guest_name"`
    GuestEmail       string    `json:"guest_email"`
    GuestPhone       *string   `json:"guest_phone,omitempty"`
    Participants     int       `json:"participants"`
    TotalCents       int64     `json:"total_cents"`
    Currency         string    `json:"currency"`
    RequestedDate    *string   `json:"requested_date,omitempty"`
    RequestedTime    *string   `json:"requested_time,omitempty"`
    SessionID        *string   `json:"session_id,omitempty"`
    ResponseDeadline time.Time `json:"response_deadline"`
    Status           Status    `json:"status"`
    PaymentRef       *string   `json:"payment_ref,omitempty"`
    CreatedAt        time.Time `json:"created_at"`
    UpdatedAt        time.Time `json:"updated_at"`
}
