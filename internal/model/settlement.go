package model

import "time"

type SettlementStatus string

const (
    SettlementProcessing SettlementStatus = "processing"
    SettlementSucceeded  SettlementStatus = "succeeded"
    SettlementFailed     SettlementStatus = "failed"
)

// Settlement tracks the money movement for one reservation.  There is at
// most one row per reservation; it is claimed (processing) before the
// transfer is issued and finalised afterwards.
type Settlement struct {
    ReservationID    string
    Status           SettlementStatus
    TransferID       *string
    SupplierCents    int64
    DistributorCents int64
    PlatformCents    int64
    FailureReason    *string
    Attempts         int
    UpdatedAt        time.Time
}
