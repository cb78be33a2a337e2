package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/traverum/booking-service/internal/model"
)

// ReservationRepo stores reservations.  Status changes are compare and swap
// updates so concurrent requests can never both move the same reservation.
type ReservationRepo struct {
	db *sql.DB
}

func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

var reservationFields = []string{
	"id", "experience_id", "hotel_id", "guest_name", "guest_email", "guest_phone",
	"participants", "total_cents", "currency", "requested_date", "requested_time", "session_id",
	"response_deadline", "status", "payment_ref", "created_at", "updated_at",
}

var reservationColumns = columns("", reservationFields)

func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const op = "repository.ReservationRepo.Create"

	_, err := r.db.ExecContext(ctx, `INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.ExperienceID, res.HotelID, res.GuestName, res.GuestEmail, nullString(res.GuestPhone),
		res.Participants, res.TotalCents, res.Currency, nullString(res.RequestedDate), nullString(res.RequestedTime), nullString(res.SessionID),
		res.ResponseDeadline, res.Status, nullString(res.PaymentRef), res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	const op = "repository.ReservationRepo.GetByID"

	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? LIMIT 1`, id)
	res, err := scanReservation(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return res, nil
}

// Transition moves id from one status to another.  It returns ErrConflict
// when the row exists but is no longer in from.
func (r *ReservationRepo) Transition(ctx context.Context, id string, from, to model.Status) error {
	const op = "repository.ReservationRepo.Transition"

	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return r.checkSwapped(ctx, op, result, id)
}

// MarkPaid records the payment reference and moves a confirmed reservation
// to pending_payment in one statement.
func (r *ReservationRepo) MarkPaid(ctx context.Context, id, paymentRef string) error {
	const op = "repository.ReservationRepo.MarkPaid"

	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, payment_ref = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		model.StatusPendingPayment, paymentRef, id, model.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return r.checkSwapped(ctx, op, result, id)
}

// ListPendingBySupplier returns the supplier's pending requests, earliest
// response deadline first.
func (r *ReservationRepo) ListPendingBySupplier(ctx context.Context, supplierID string) ([]model.Reservation, error) {
	const op = "repository.ReservationRepo.ListPendingBySupplier"

	rows, err := r.db.QueryContext(ctx, `SELECT `+columns("r", reservationFields)+`
		FROM reservations r
		JOIN experiences e ON e.id = r.experience_id
		WHERE e.partner_id = ? AND r.status = ?
		ORDER BY r.response_deadline ASC, r.created_at ASC`,
		supplierID, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *ReservationRepo) checkSwapped(ctx context.Context, op string, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ? LIMIT 1`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}
	return fmt.Errorf("%s: %w", op, ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var phone, date, tm, session, payRef sql.NullString
	err := s.Scan(
		&res.ID, &res.ExperienceID, &res.HotelID, &res.GuestName, &res.GuestEmail, &phone,
		&res.Participants, &res.TotalCents, &res.Currency, &date, &tm, &session,
		&res.ResponseDeadline, &res.Status, &payRef, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.GuestPhone = stringPtr(phone)
	res.RequestedDate = stringPtr(date)
	res.RequestedTime = stringPtr(tm)
	res.SessionID = stringPtr(session)
	res.PaymentRef = stringPtr(payRef)
	return &res, nil
}

// columns joins field names, qualifying them with alias when given.
func columns(alias string, fields []string) string {
	if alias == "" {
		return strings.Join(fields, ", ")
	}
	q := make([]string, len(fields))
	for i, f := range fields {
		q[i] = alias + "." + f
	}
	return strings.Join(q, ", ")
}
