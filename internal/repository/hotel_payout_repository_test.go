package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traverum/booking-service/internal/model"
)

var payoutFields = []string{"id", "hotel_id", "reservation_id", "amount_cents", "currency", "status", "payment_ref", "payment_method", "notes", "paid_at", "created_at"}

func TestHotelPayoutMarkPaidOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHotelPayoutRepo(db)
	firstPaid := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return firstPaid }
	created := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)
	ref := "SEPA-001"

	mock.ExpectExec(`UPDATE hotel_payouts\s+SET status = \?, paid_at = \?, payment_ref = \?, payment_method = \?, notes = \?\s+WHERE id = \? AND status = \?`).
		WithArgs("paid", firstPaid, "SEPA-001", nil, nil, "hp-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM hotel_payouts WHERE id = \?`).WithArgs("hp-1").
		WillReturnRows(sqlmock.NewRows(payoutFields).
			AddRow("hp-1", "hotel-1", "res-1", int64(2040), "eur", "paid", "SEPA-001", nil, nil, firstPaid, created))

	p, err := repo.MarkPaid(context.Background(), "hp-1", PaidDetails{PaymentRef: &ref})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPaid, p.Status)
	assert.Equal(t, firstPaid, *p.PaidAt)

	// second attempt matches no pending row
	repo.now = func() time.Time { return firstPaid.Add(24 * time.Hour) }
	mock.ExpectExec(`UPDATE hotel_payouts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM hotel_payouts WHERE id = \?`).WithArgs("hp-1").
		WillReturnRows(sqlmock.NewRows(payoutFields).
			AddRow("hp-1", "hotel-1", "res-1", int64(2040), "eur", "paid", "SEPA-001", nil, nil, firstPaid, created))

	p, err = repo.MarkPaid(context.Background(), "hp-1", PaidDetails{})
	assert.ErrorIs(t, err, ErrConflict)
	require.NotNil(t, p)
	assert.Equal(t, firstPaid, *p.PaidAt, "paid_at keeps the first payment time")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHotelPayoutMarkPaidUnknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHotelPayoutRepo(db)

	mock.ExpectExec(`UPDATE hotel_payouts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM hotel_payouts WHERE id = \?`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(payoutFields))

	_, err := repo.MarkPaid(context.Background(), "missing", PaidDetails{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHotelPayoutCreatePendingIsIdempotent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHotelPayoutRepo(db)

	mock.ExpectExec(`INSERT INTO hotel_payouts .* ON DUPLICATE KEY UPDATE id = id`).
		WithArgs(sqlmock.AnyArg(), "hotel-1", "res-1", int64(2040), "eur", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &model.HotelPayout{HotelID: "hotel-1", ReservationID: "res-1", AmountCents: 2040, Currency: "eur"}
	require.NoError(t, repo.CreatePending(context.Background(), p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, model.PayoutPending, p.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
