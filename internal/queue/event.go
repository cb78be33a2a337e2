// Package queue defines the booking events exchanged over RabbitMQ, the
// publisher that emits them and the consumer that retries failed
// settlements.
package queue

import "time"

// Event types.
const (
    EventReservationCreated   = "reservation.created"
    EventReservationConfirmed = "reservation.confirmed"
    EventReservationDeclined  = "reservation.declined"
    EventPaymentReceived      = "reservation.payment_received"
    EventReservationCompleted = "reservation.completed"
    EventReservationCancelled = "reservation.cancelled"
    EventSettlementFailed     = "settlement.failed"
)

// Queue names.  Lifecycle events go to one queue for downstream
// notification and analytics; settlement failures get their own queue so the
// reconciliation consumer only sees work it can act on.
const (
    BookingEventsQueue   = "booking.events"
    SettlementRetryQueue = "settlement.retry"
)

// Event carries enough context for consumers to act without querying the
// primary database.
type Event struct {
    Type          string    `json:"type"`
    ReservationID string    `json:"reservation_id"`
    ExperienceID  string    `json:"experience_id,omitempty"`
    HotelID       string    `json:"hotel_id,omitempty"`
    Status        string    `json:"status"`
    TotalCents    int64     `json:"total_cents,omitempty"`
    Currency      string    `json:"currency,omitempty"`
    Reason        string    `json:"reason,omitempty"`
    Attempt       int       `json:"attempt,omitempty"`
    OccurredAt    time.Time `json:"occurred_at"`
}

// QueueFor routes an event type to its queue.
func QueueFor(eventType string) string {
    if eventType == EventSettlementFailed {
        return SettlementRetryQueue
    }
    return BookingEventsQueue
}
