// Package settlement splits a completed reservation's revenue and pays the
// supplier share to the supplier's connected account.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/payment"
	"github.com/traverum/booking-service/internal/repository"
)

var (
	ErrNoConnectedAccount   = errors.New("supplier has no connected payment account")
	ErrTransferFailed       = errors.New("supplier transfer failed")
	ErrSettlementInProgress = errors.New("settlement already in progress")
	ErrRefundFailed         = errors.New("refund failed")
	ErrAlreadySettled       = errors.New("reservation already settled")
)

// Failure reasons stored on the settlement row.
const (
	ReasonNoConnectedAccount = "no_connected_account"
	ReasonTransferFailed     = "transfer_failed"
)

// Store persists one settlement row per reservation.
//
// Claim moves the row to processing, inserting it if needed, and returns the
// claimed row.  When the row already succeeded it is returned unchanged.
// A row another worker holds in processing yields repository.ErrConflict,
// unless it has been untouched for longer than staleAfter.  Get returns
// repository.ErrNotFound before the first claim.
type Store interface {
	Get(ctx context.Context, reservationID string) (model.Settlement, error)
	Claim(ctx context.Context, s model.Settlement, staleAfter time.Duration) (model.Settlement, error)
	MarkSucceeded(ctx context.Context, reservationID, transferID string) error
	MarkFailed(ctx context.Context, reservationID, reason string) error
}

// PayoutStore records the hotel share.  CreatePending must be idempotent per
// reservation.
type PayoutStore interface {
	CreatePending(ctx context.Context, p *model.HotelPayout) error
}

type Provider interface {
	Transfer(ctx context.Context, req payment.TransferRequest) (string, error)
	Refund(ctx context.Context, req payment.RefundRequest) (string, error)
}

// Result describes a settled reservation.
type Result struct {
	ReservationID string `json:"reservation_id"`
	TransferID    string `json:"transfer_id,omitempty"`
	Shares        Shares `json:"shares"`
	// Replayed is set when the settlement had already succeeded earlier.
	Replayed bool `json:"replayed"`
}

type Service struct {
	log        *slog.Logger
	store      Store
	payouts    PayoutStore
	provider   Provider
	metrics    *metrics.Metrics
	staleAfter time.Duration
}

func New(log *slog.Logger, store Store, payouts PayoutStore, provider Provider, m *metrics.Metrics) *Service {
	return &Service{
		log:        log,
		store:      store,
		payouts:    payouts,
		provider:   provider,
		metrics:    m,
		staleAfter: 5 * time.Minute,
	}
}

// TransferKey is the idempotency key of the supplier transfer for a
// reservation.  Retries reuse it so the provider never pays twice.
func TransferKey(reservationID string) string { return "settlement-" + reservationID }

// RefundKey is the idempotency key of the guest refund for a reservation.
func RefundKey(reservationID string) string { return "refund-" + reservationID }

// Settle pays out a reservation: the supplier share goes to supplier's
// connected account and the distributor share is accrued as a pending hotel
// payout.  Failures leave the settlement row in failed so a later Settle can
// pick it up again.
func (s *Service) Settle(ctx context.Context, res *model.Reservation, supplier *model.Partner) (Result, error) {
	const op = "settlement.Service.Settle"
	log := s.log.With(slog.String("op", op), slog.String("reservation_id", res.ID))

	shares := Split(res.TotalCents)
	row, err := s.store.Claim(ctx, model.Settlement{
		ReservationID:    res.ID,
		Status:           model.SettlementProcessing,
		SupplierCents:    shares.Supplier,
		DistributorCents: shares.Distributor,
		PlatformCents:    shares.Platform,
	}, s.staleAfter)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Result{}, fmt.Errorf("%s: %w", op, ErrSettlementInProgress)
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if row.Status == model.SettlementSucceeded {
		out := Result{ReservationID: res.ID, Shares: shares, Replayed: true}
		if row.TransferID != nil {
			out.TransferID = *row.TransferID
		}
		if err := s.accrueHotelShare(ctx, res, shares); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	if supplier == nil || !supplier.HasConnectedAccount() {
		s.fail(ctx, log, res.ID, ReasonNoConnectedAccount)
		return Result{}, fmt.Errorf("%s: %w", op, ErrNoConnectedAccount)
	}

	var transferID string
	if shares.Supplier > 0 {
		transferID, err = s.provider.Transfer(ctx, payment.TransferRequest{
			AmountCents:    shares.Supplier,
			Currency:       res.Currency,
			Destination:    *supplier.StripeAccountID,
			TransferGroup:  res.ID,
			IdempotencyKey: TransferKey(res.ID),
			ReservationID:  res.ID,
		})
		if err != nil {
			log.Error("supplier transfer failed", sl.Err(err))
			s.fail(ctx, log, res.ID, ReasonTransferFailed)
			return Result{}, fmt.Errorf("%s: %w: %w", op, ErrTransferFailed, err)
		}
	}

	if err := s.store.MarkSucceeded(ctx, res.ID, transferID); err != nil {
		// The transfer went through; a later claim re-runs it under the same
		// idempotency key and lands here again.
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Settlements.WithLabelValues("succeeded").Inc()
	s.metrics.SettledCents.WithLabelValues("supplier", res.Currency).Add(float64(shares.Supplier))
	s.metrics.SettledCents.WithLabelValues("distributor", res.Currency).Add(float64(shares.Distributor))
	s.metrics.SettledCents.WithLabelValues("platform", res.Currency).Add(float64(shares.Platform))

	if err := s.accrueHotelShare(ctx, res, shares); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reservation settled",
		slog.String("transfer_id", transferID),
		slog.String("supplier", FormatCents(shares.Supplier)),
		slog.String("distributor", FormatCents(shares.Distributor)),
		slog.String("platform", FormatCents(shares.Platform)),
	)
	return Result{ReservationID: res.ID, TransferID: transferID, Shares: shares}, nil
}

// Refund returns the full amount paid for a reservation.  Reservations
// without a captured payment have nothing to refund.  Once the supplier
// transfer is under way or done the payment is no longer refundable here.
func (s *Service) Refund(ctx context.Context, res *model.Reservation) (string, error) {
	const op = "settlement.Service.Refund"

	if res.PaymentRef == nil || *res.PaymentRef == "" {
		return "", nil
	}
	row, err := s.store.Get(ctx, res.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	case row.Status == model.SettlementSucceeded:
		return "", fmt.Errorf("%s: %w", op, ErrAlreadySettled)
	case row.Status == model.SettlementProcessing:
		return "", fmt.Errorf("%s: %w", op, ErrSettlementInProgress)
	}

	id, err := s.provider.Refund(ctx, payment.RefundRequest{
		PaymentIntentID: *res.PaymentRef,
		IdempotencyKey:  RefundKey(res.ID),
		ReservationID:   res.ID,
	})
	if err != nil {
		s.metrics.Settlements.WithLabelValues("refund_failed").Inc()
		return "", fmt.Errorf("%s: %w: %w", op, ErrRefundFailed, err)
	}
	s.metrics.Settlements.WithLabelValues("refunded").Inc()
	return id, nil
}

func (s *Service) accrueHotelShare(ctx context.Context, res *model.Reservation, shares Shares) error {
	if shares.Distributor <= 0 || res.HotelID == "" {
		return nil
	}
	return s.payouts.CreatePending(ctx, &model.HotelPayout{
		HotelID:       res.HotelID,
		ReservationID: res.ID,
		AmountCents:   shares.Distributor,
		Currency:      res.Currency,
		Status:        model.PayoutPending,
	})
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, reservationID, reason string) {
	s.metrics.Settlements.WithLabelValues(reason).Inc()
	if err := s.store.MarkFailed(ctx, reservationID, reason); err != nil {
		log.Error("failed to record settlement failure", slog.String("reason", reason), sl.Err(err))
	}
}
