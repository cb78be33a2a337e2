package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/payment"
	"github.com/traverum/booking-service/internal/queue"
	"github.com/traverum/booking-service/internal/repository"
	"github.com/traverum/booking-service/internal/settlement"
	"github.com/traverum/booking-service/internal/token"
)

// ReservationStore persists reservations.  Transition is a compare and swap
// on the current status and returns repository.ErrConflict when the row is
// no longer in from.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	Transition(ctx context.Context, id string, from, to model.Status) error
	MarkPaid(ctx context.Context, id, paymentRef string) error
	ListPendingBySupplier(ctx context.Context, supplierID string) ([]model.Reservation, error)
}

type CatalogStore interface {
	GetExperience(ctx context.Context, id string) (*model.Experience, error)
	GetPartner(ctx context.Context, id string) (*model.Partner, error)
}

type Settler interface {
	Settle(ctx context.Context, res *model.Reservation, supplier *model.Partner) (settlement.Result, error)
	Refund(ctx context.Context, res *model.Reservation) (string, error)
}

type PaymentIntents interface {
	CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Options carries the tunables of the lifecycle.
type Options struct {
	ResponseWindow  time.Duration
	ActionTokenTTL  time.Duration
	PublicBaseURL   string
	DefaultCurrency string
}

type Service struct {
	log       *slog.Logger
	store     ReservationStore
	catalog   CatalogStore
	settler   Settler
	intents   PaymentIntents
	publisher Publisher
	tokens    *token.Service
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

func NewService(
	log *slog.Logger,
	store ReservationStore,
	catalog CatalogStore,
	settler Settler,
	intents PaymentIntents,
	publisher Publisher,
	tokens *token.Service,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if opts.ResponseWindow <= 0 {
		opts.ResponseWindow = 48 * time.Hour
	}
	if opts.ActionTokenTTL <= 0 {
		opts.ActionTokenTTL = 30 * 24 * time.Hour
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "eur"
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Service{
		log:       log,
		store:     store,
		catalog:   catalog,
		settler:   settler,
		intents:   intents,
		publisher: publisher,
		tokens:    tokens,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

// CreateInput is a guest's booking request.
type CreateInput struct {
	ExperienceID  string
	HotelID       string
	GuestName     string
	GuestEmail    string
	GuestPhone    string
	Participants  int
	RequestedDate string
	RequestedTime string
	SessionID     string
}

// Links are the signed URLs handed out once a request is confirmed.  Pay
// and Cancel go to the guest, Complete to the supplier.
type Links struct {
	Pay      string `json:"pay"`
	Cancel   string `json:"cancel"`
	Complete string `json:"complete"`
}

// Create stores a new pending request with a response deadline.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	const op = "booking.Service.Create"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	exp, err := s.catalog.GetExperience(ctx, in.ExperienceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, invalid("experience_id", "unknown experience"))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exp.MaxParticipants > 0 && in.Participants > exp.MaxParticipants {
		return nil, fmt.Errorf("%s: %w", op, invalid("participants", fmt.Sprintf("at most %d allowed", exp.MaxParticipants)))
	}
	if _, err := s.catalog.GetPartner(ctx, in.HotelID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, invalid("hotel_id", "unknown hotel"))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	currency := exp.Currency
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}
	r := &model.Reservation{
		ID:               uuid.NewString(),
		ExperienceID:     exp.ID,
		HotelID:          in.HotelID,
		GuestName:        in.GuestName,
		GuestEmail:       in.GuestEmail,
		GuestPhone:       optional(in.GuestPhone),
		Participants:     in.Participants,
		TotalCents:       exp.PriceCents * int64(in.Participants),
		Currency:         currency,
		RequestedDate:    optional(in.RequestedDate),
		RequestedTime:    optional(in.RequestedTime),
		SessionID:        optional(in.SessionID),
		ResponseDeadline: now.Add(s.opts.ResponseWindow),
		Status:           model.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.emit(ctx, s.event(queue.EventReservationCreated, r))
	return r, nil
}

func (in CreateInput) validate() error {
	switch {
	case strings.TrimSpace(in.ExperienceID) == "":
		return invalid("experience_id", "required")
	case strings.TrimSpace(in.HotelID) == "":
		return invalid("hotel_id", "required")
	case strings.TrimSpace(in.GuestName) == "":
		return invalid("guest_name", "required")
	case !strings.Contains(in.GuestEmail, "@"):
		return invalid("guest_email", "must be an email address")
	case in.Participants < 1:
		return invalid("participants", "must be at least 1")
	case in.SessionID == "" && in.RequestedDate == "":
		return invalid("requested_date", "date or session_id required")
	}
	if in.RequestedDate != "" {
		if _, err := time.Parse("2006-01-02", in.RequestedDate); err != nil {
			return invalid("requested_date", "expected YYYY-MM-DD")
		}
	}
	if in.RequestedTime != "" {
		if _, err := time.Parse("15:04", in.RequestedTime); err != nil {
			return invalid("requested_time", "expected HH:MM")
		}
	}
	return nil
}

// Get loads a reservation.
func (s *Service) Get(ctx context.Context, id string) (*model.Reservation, error) {
	const op = "booking.Service.Get"

	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// PendingRequests lists the supplier's unanswered requests, earliest
// deadline first.
func (s *Service) PendingRequests(ctx context.Context, supplierID string) ([]model.Reservation, error) {
	const op = "booking.Service.PendingRequests"

	list, err := s.store.ListPendingBySupplier(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Confirm accepts a pending request on behalf of the owning supplier and
// returns the action links for guest and supplier.
func (s *Service) Confirm(ctx context.Context, supplierID, id string) (*model.Reservation, Links, error) {
	const op = "booking.Service.Confirm"

	r, err := s.ownedBy(ctx, supplierID, id)
	if err != nil {
		return nil, Links{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.transition(ctx, r, model.StatusConfirmed); err != nil {
		return nil, Links{}, fmt.Errorf("%s: %w", op, err)
	}
	links, err := s.links(r.ID)
	if err != nil {
		return nil, Links{}, fmt.Errorf("%s: %w", op, err)
	}
	s.emit(ctx, s.event(queue.EventReservationConfirmed, r))
	return r, links, nil
}

// Decline rejects a pending request.
func (s *Service) Decline(ctx context.Context, supplierID, id string) (*model.Reservation, error) {
	const op = "booking.Service.Decline"

	r, err := s.ownedBy(ctx, supplierID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.transition(ctx, r, model.StatusDeclined); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.emit(ctx, s.event(queue.EventReservationDeclined, r))
	return r, nil
}

// Checkout opens a payment intent for a confirmed reservation.  Repeated
// calls return the same intent.
func (s *Service) Checkout(ctx context.Context, id string) (payment.Intent, error) {
	const op = "booking.Service.Checkout"

	r, err := s.Get(ctx, id)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("%s: %w", op, err)
	}
	if r.Status != model.StatusConfirmed {
		return payment.Intent{}, fmt.Errorf("%s: %w: %s is not awaiting payment", op, ErrInvalidTransition, r.Status)
	}
	in, err := s.intents.CreatePaymentIntent(ctx, payment.IntentRequest{
		ReservationID:  r.ID,
		AmountCents:    r.TotalCents,
		Currency:       r.Currency,
		ReceiptEmail:   r.GuestEmail,
		IdempotencyKey: "checkout-" + r.ID,
	})
	if err != nil {
		return payment.Intent{}, fmt.Errorf("%s: %w", op, err)
	}
	return in, nil
}

// PaymentSucceeded records a captured payment and moves the reservation to
// pending_payment.  Redelivered webhooks for the same payment are no-ops.
// A payment arriving after the reservation was cancelled or declined is
// refunded and reported as ErrInvalidTransition.
func (s *Service) PaymentSucceeded(ctx context.Context, id, paymentRef string) error {
	const op = "booking.Service.PaymentSucceeded"

	r, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if r.Status == model.StatusPendingPayment && r.PaymentRef != nil && *r.PaymentRef == paymentRef {
		return nil
	}
	if (r.Status == model.StatusCancelled || r.Status == model.StatusDeclined) && (r.PaymentRef == nil || *r.PaymentRef != paymentRef) {
		late := *r
		late.PaymentRef = &paymentRef
		refundID, err := s.settler.Refund(ctx, &late)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.log.Warn("late payment refunded",
			slog.String("reservation_id", r.ID),
			slog.String("status", string(r.Status)),
			slog.String("refund_id", refundID))
		return fmt.Errorf("%s: %w: payment refunded, reservation is %s", op, ErrInvalidTransition, r.Status)
	}
	if !CanTransition(r.Status, model.StatusPendingPayment) {
		return fmt.Errorf("%s: %w: %s -> %s", op, ErrInvalidTransition, r.Status, model.StatusPendingPayment)
	}
	if err := s.store.MarkPaid(ctx, r.ID, paymentRef); err != nil {
		return fmt.Errorf("%s: %w", op, s.casErr(err))
	}
	s.metrics.Transitions.WithLabelValues(string(r.Status), string(model.StatusPendingPayment)).Inc()
	r.Status = model.StatusPendingPayment
	r.PaymentRef = &paymentRef
	s.emit(ctx, s.event(queue.EventPaymentReceived, r))
	return nil
}

// Complete settles a paid reservation and marks it completed.  The status
// only moves once the supplier transfer succeeded; on settlement failure the
// reservation stays pending_payment and a settlement.failed event is queued
// for reconciliation.
func (s *Service) Complete(ctx context.Context, id string) (*model.Reservation, settlement.Result, error) {
	const op = "booking.Service.Complete"

	r, res, err := s.complete(ctx, id, 1)
	if err != nil {
		return nil, settlement.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return r, res, nil
}

// RetrySettlement is the reconciliation entry point; attempt counts the
// settlement attempts made so far including this one.  Reservations that
// completed or left the payment stage meanwhile are skipped.
func (s *Service) RetrySettlement(ctx context.Context, id string, attempt int) error {
	const op = "booking.Service.RetrySettlement"

	r, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if r.Status != model.StatusPendingPayment {
		s.log.Info("settlement retry skipped", slog.String("op", op), slog.String("reservation_id", id), slog.String("status", string(r.Status)))
		return nil
	}
	_, _, err = s.complete(ctx, id, attempt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, settlement.ErrSettlementInProgress):
		return nil
	case errors.Is(err, settlement.ErrNoConnectedAccount), errors.Is(err, settlement.ErrTransferFailed):
		// settle already queued the next attempt
		s.log.Warn("settlement retry failed", slog.String("op", op), slog.String("reservation_id", id), slog.Int("attempt", attempt), sl.Err(err))
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) complete(ctx context.Context, id string, attempt int) (*model.Reservation, settlement.Result, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, settlement.Result{}, err
	}
	if !CanTransition(r.Status, model.StatusCompleted) {
		return nil, settlement.Result{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, model.StatusCompleted)
	}
	res, err := s.settle(ctx, r, attempt)
	if err != nil {
		return nil, settlement.Result{}, err
	}
	if err := s.transition(ctx, r, model.StatusCompleted); err != nil {
		return nil, settlement.Result{}, err
	}
	s.emit(ctx, s.event(queue.EventReservationCompleted, r))
	return r, res, nil
}

// Cancel moves a non-terminal reservation to cancelled.  Paid reservations
// are refunded in full first; a failed refund leaves the status unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	const op = "booking.Service.Cancel"

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !CanTransition(r.Status, model.StatusCancelled) {
		return nil, fmt.Errorf("%s: %w: %s -> %s", op, ErrInvalidTransition, r.Status, model.StatusCancelled)
	}
	if r.Status == model.StatusPendingPayment {
		refundID, err := s.settler.Refund(ctx, r)
		if errors.Is(err, settlement.ErrAlreadySettled) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidTransition, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("reservation refunded", slog.String("reservation_id", r.ID), slog.String("refund_id", refundID))
	}
	if err := s.transition(ctx, r, model.StatusCancelled); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.emit(ctx, s.event(queue.EventReservationCancelled, r))
	return r, nil
}

func (s *Service) settle(ctx context.Context, r *model.Reservation, attempt int) (settlement.Result, error) {
	exp, err := s.catalog.GetExperience(ctx, r.ExperienceID)
	if err != nil {
		return settlement.Result{}, err
	}
	supplier, err := s.catalog.GetPartner(ctx, exp.PartnerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return settlement.Result{}, err
	}
	res, err := s.settler.Settle(ctx, r, supplier)
	if err != nil {
		ev := s.event(queue.EventSettlementFailed, r)
		ev.Attempt = attempt
		switch {
		case errors.Is(err, settlement.ErrNoConnectedAccount):
			ev.Reason = settlement.ReasonNoConnectedAccount
			s.emit(ctx, ev)
		case errors.Is(err, settlement.ErrTransferFailed):
			ev.Reason = settlement.ReasonTransferFailed
			s.emit(ctx, ev)
		}
		return settlement.Result{}, err
	}
	return res, nil
}

func (s *Service) ownedBy(ctx context.Context, supplierID, id string) (*model.Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exp, err := s.catalog.GetExperience(ctx, r.ExperienceID)
	if err != nil {
		return nil, err
	}
	if exp.PartnerID != supplierID {
		return nil, ErrForbidden
	}
	return r, nil
}

// transition guards, persists and applies one status move on r.
func (s *Service) transition(ctx context.Context, r *model.Reservation, to model.Status) error {
	from := r.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := s.store.Transition(ctx, r.ID, from, to); err != nil {
		return s.casErr(err)
	}
	s.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	r.Status = to
	r.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Service) casErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrInvalidTransition
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	}
	return err
}

func (s *Service) links(id string) (Links, error) {
	var out Links
	for _, l := range []struct {
		action string
		path   string
		dst    *string
	}{
		{token.ActionPay, "checkout", &out.Pay},
		{token.ActionCancel, "cancel", &out.Cancel},
		{token.ActionComplete, "complete", &out.Complete},
	} {
		tok, err := s.tokens.Issue(id, l.action, s.opts.ActionTokenTTL)
		if err != nil {
			return Links{}, err
		}
		*l.dst = fmt.Sprintf("%s/v1/bookings/%s/%s?token=%s", s.opts.PublicBaseURL, url.PathEscape(id), l.path, url.QueryEscape(tok))
	}
	return out, nil
}

func (s *Service) event(typ string, r *model.Reservation) queue.Event {
	return queue.Event{
		Type:          typ,
		ReservationID: r.ID,
		ExperienceID:  r.ExperienceID,
		HotelID:       r.HotelID,
		Status:        string(r.Status),
		TotalCents:    r.TotalCents,
		Currency:      r.Currency,
		OccurredAt:    s.now().UTC(),
	}
}

// emit publishes a lifecycle event.  Broker failures are logged and never
// fail the request.
func (s *Service) emit(ctx context.Context, ev queue.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.metrics.Events.WithLabelValues(ev.Type, "error").Inc()
		s.log.Warn("event publish failed", slog.String("type", ev.Type), slog.String("reservation_id", ev.ReservationID), sl.Err(err))
		return
	}
	s.metrics.Events.WithLabelValues(ev.Type, "ok").Inc()
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
