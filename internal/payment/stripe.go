// Package payment wraps the Stripe API calls the booking flow needs:
// payment intents for guest checkout, Connect transfers for supplier
// settlement, refunds on cancellation and webhook verification.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/traverum/booking-service/internal/config"
)

// ErrWebhookSignature is returned when a webhook payload fails signature or
// format checks.
var ErrWebhookSignature = errors.New("invalid webhook signature")

// MetadataReservationID is the metadata key linking Stripe objects back to a
// reservation.
const MetadataReservationID = "reservation_id"

const EventPaymentSucceeded = "payment_intent.succeeded"

type IntentRequest struct {
	ReservationID  string
	AmountCents    int64
	Currency       string
	ReceiptEmail   string
	IdempotencyKey string
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type TransferRequest struct {
	AmountCents    int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
	ReservationID  string
}

type RefundRequest struct {
	PaymentIntentID string
	IdempotencyKey  string
	ReservationID   string
}

// WebhookEvent is the part of a verified Stripe event the booking flow acts on.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	ReservationID   string
}

// Stripe is the live provider.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(cfg config.StripeConfig) *Stripe {
	return newStripe(cfg, nil)
}

// newStripe lets tests point the client at a local backend.
func newStripe(cfg config.StripeConfig, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(cfg.SecretKey, backends), webhookSecret: cfg.WebhookSecret}
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	const op = "payment.Stripe.CreatePaymentIntent"

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		TransferGroup: stripe.String(req.ReservationID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataReservationID, req.ReservationID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("%s: %w", op, describe(err))
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Transfer moves funds from the platform balance to a connected account and
// returns the transfer id.
func (s *Stripe) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	const op = "payment.Stripe.Transfer"

	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.TransferGroup),
	}
	params.Context = ctx
	params.AddMetadata(MetadataReservationID, req.ReservationID)
	params.SetIdempotencyKey(req.IdempotencyKey)

	tr, err := s.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, describe(err))
	}
	return tr.ID, nil
}

// Refund returns the full captured amount of a payment intent.
func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (string, error) {
	const op = "payment.Stripe.Refund"

	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.PaymentIntentID)}
	params.Context = ctx
	params.AddMetadata(MetadataReservationID, req.ReservationID)
	params.SetIdempotencyKey(req.IdempotencyKey)

	rf, err := s.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, describe(err))
	}
	return rf.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the payment
// intent from payment_intent.* events.  Other event types come back with
// only ID and Type set.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	const op = "payment.Stripe.ParseWebhook"

	// Only the intent id and metadata are read, which every API version
	// carries, so endpoints pinned to another version are accepted.
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%s: %w: %v", op, ErrWebhookSignature, err)
	}
	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	if out.Type == EventPaymentSucceeded || out.Type == "payment_intent.payment_failed" {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return WebhookEvent{}, fmt.Errorf("%s: %w", op, err)
		}
		out.PaymentIntentID = pi.ID
		out.ReservationID = pi.Metadata[MetadataReservationID]
	}
	return out, nil
}

// describe flattens a Stripe API error into something worth logging.
func describe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("stripe %s (%s): %s: %w", se.Type, se.Code, se.Msg, err)
	}
	return err
}
