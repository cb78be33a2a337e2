package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/traverum/booking-service/internal/model"
)

// SettlementRepo keeps one settlement row per reservation.  The row doubles
// as a lock: only the caller that moved it to processing may transfer money.
type SettlementRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSettlementRepo(db *sql.DB) *SettlementRepo {
	return &SettlementRepo{db: db, now: time.Now}
}

const settlementColumns = "reservation_id, status, transfer_id, supplier_cents, distributor_cents, platform_cents, failure_reason, attempts, updated_at"

// Claim inserts a processing row or takes over a failed one.  A processing
// row older than staleAfter is assumed abandoned and taken over too.  When
// the settlement already succeeded the stored row is returned as is; any
// other existing row yields ErrConflict.
func (r *SettlementRepo) Claim(ctx context.Context, s model.Settlement, staleAfter time.Duration) (model.Settlement, error) {
	const op = "repository.SettlementRepo.Claim"

	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO settlements
		(reservation_id, status, supplier_cents, distributor_cents, platform_cents, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		s.ReservationID, model.SettlementProcessing, s.SupplierCents, s.DistributorCents, s.PlatformCents, now)
	if err == nil {
		return r.get(ctx, op, s.ReservationID)
	}
	if !isDuplicate(err) {
		return model.Settlement{}, fmt.Errorf("%s: %w", op, err)
	}

	result, err := r.db.ExecContext(ctx, `UPDATE settlements
		SET status = ?, attempts = attempts + 1, failure_reason = NULL, updated_at = ?
		WHERE reservation_id = ? AND (status = ? OR (status = ? AND updated_at < ?))`,
		model.SettlementProcessing, now,
		s.ReservationID, model.SettlementFailed, model.SettlementProcessing, now.Add(-staleAfter))
	if err != nil {
		return model.Settlement{}, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Settlement{}, fmt.Errorf("%s: %w", op, err)
	}

	row, err := r.get(ctx, op, s.ReservationID)
	if err != nil {
		return model.Settlement{}, err
	}
	if n == 1 || row.Status == model.SettlementSucceeded {
		return row, nil
	}
	return model.Settlement{}, fmt.Errorf("%s: %w", op, ErrConflict)
}

func (r *SettlementRepo) MarkSucceeded(ctx context.Context, reservationID, transferID string) error {
	const op = "repository.SettlementRepo.MarkSucceeded"

	var tid *string
	if transferID != "" {
		tid = &transferID
	}
	return r.finish(ctx, op, reservationID, model.SettlementSucceeded, nullString(tid), sql.NullString{})
}

func (r *SettlementRepo) MarkFailed(ctx context.Context, reservationID, reason string) error {
	const op = "repository.SettlementRepo.MarkFailed"

	return r.finish(ctx, op, reservationID, model.SettlementFailed, sql.NullString{}, sql.NullString{String: reason, Valid: true})
}

func (r *SettlementRepo) Get(ctx context.Context, reservationID string) (model.Settlement, error) {
	return r.get(ctx, "repository.SettlementRepo.Get", reservationID)
}

func (r *SettlementRepo) finish(ctx context.Context, op, reservationID string, status model.SettlementStatus, transferID, reason sql.NullString) error {
	result, err := r.db.ExecContext(ctx, `UPDATE settlements
		SET status = ?, transfer_id = COALESCE(?, transfer_id), failure_reason = ?, updated_at = ?
		WHERE reservation_id = ? AND status = ?`,
		status, transferID, reason, r.now().UTC(), reservationID, model.SettlementProcessing)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return nil
}

func (r *SettlementRepo) get(ctx context.Context, op, reservationID string) (model.Settlement, error) {
	var s model.Settlement
	var transferID, reason sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT "+settlementColumns+" FROM settlements WHERE reservation_id = ? LIMIT 1", reservationID).
		Scan(&s.ReservationID, &s.Status, &transferID, &s.SupplierCents, &s.DistributorCents, &s.PlatformCents, &reason, &s.Attempts, &s.UpdatedAt)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("%s: %w", op, notFound(err))
	}
	s.TransferID = stringPtr(transferID)
	s.FailureReason = stringPtr(reason)
	return s, nil
}
