package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/traverum/booking-service/internal/model"
)

// HotelPayoutRepo stores the distributor share owed to hotels.  A payout
// moves from pending to paid exactly once; paid_at is written on that move
// and never touched again.
type HotelPayoutRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewHotelPayoutRepo(db *sql.DB) *HotelPayoutRepo {
	return &HotelPayoutRepo{db: db, now: time.Now}
}

const hotelPayoutColumns = "id, hotel_id, reservation_id, amount_cents, currency, status, payment_ref, payment_method, notes, paid_at, created_at"

// CreatePending records a pending payout for a reservation.  A second call
// for the same reservation is a no-op.
func (r *HotelPayoutRepo) CreatePending(ctx context.Context, p *model.HotelPayout) error {
	const op = "repository.HotelPayoutRepo.CreatePending"

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	p.Status = model.PayoutPending
	_, err := r.db.ExecContext(ctx, `INSERT INTO hotel_payouts (id, hotel_id, reservation_id, amount_cents, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`,
		p.ID, p.HotelID, p.ReservationID, p.AmountCents, p.Currency, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *HotelPayoutRepo) GetByID(ctx context.Context, id string) (*model.HotelPayout, error) {
	const op = "repository.HotelPayoutRepo.GetByID"

	p, err := scanHotelPayout(r.db.QueryRowContext(ctx,
		"SELECT "+hotelPayoutColumns+" FROM hotel_payouts WHERE id = ? LIMIT 1", id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return p, nil
}

// PaidDetails are the optional bookkeeping fields recorded with a payment.
type PaidDetails struct {
	PaymentRef    *string
	PaymentMethod *string
	Notes         *string
}

// MarkPaid flips a pending payout to paid and returns the updated row.
// It returns ErrConflict when the payout is already paid.
func (r *HotelPayoutRepo) MarkPaid(ctx context.Context, id string, d PaidDetails) (*model.HotelPayout, error) {
	const op = "repository.HotelPayoutRepo.MarkPaid"

	result, err := r.db.ExecContext(ctx, `UPDATE hotel_payouts
		SET status = ?, paid_at = ?, payment_ref = ?, payment_method = ?, notes = ?
		WHERE id = ? AND status = ?`,
		model.PayoutPaid, r.now().UTC(), nullString(d.PaymentRef), nullString(d.PaymentMethod), nullString(d.Notes),
		id, model.PayoutPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return p, fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return p, nil
}

// ListByStatus returns payouts in the given status, oldest first.
func (r *HotelPayoutRepo) ListByStatus(ctx context.Context, status model.PayoutStatus, limit int) ([]model.HotelPayout, error) {
	const op = "repository.HotelPayoutRepo.ListByStatus"

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+hotelPayoutColumns+" FROM hotel_payouts WHERE status = ? ORDER BY created_at ASC LIMIT ?",
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.HotelPayout{}
	for rows.Next() {
		p, err := scanHotelPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanHotelPayout(s rowScanner) (*model.HotelPayout, error) {
	var p model.HotelPayout
	var ref, method, notes sql.NullString
	var paidAt sql.NullTime
	err := s.Scan(&p.ID, &p.HotelID, &p.ReservationID, &p.AmountCents, &p.Currency, &p.Status,
		&ref, &method, &notes, &paidAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.PaymentRef = stringPtr(ref)
	p.PaymentMethod = stringPtr(method)
	p.Notes = stringPtr(notes)
	p.PaidAt = timePtr(paidAt)
	return &p, nil
}
