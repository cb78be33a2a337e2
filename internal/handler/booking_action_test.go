package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traverum/booking-service/internal/booking"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/payment"
	"github.com/traverum/booking-service/internal/settlement"
	"github.com/traverum/booking-service/internal/token"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type actionFixture struct {
	b       *fakeBookings
	ledger  *memLedger
	tokens  *token.Service
	metrics *metrics.Metrics
	h       *BookingActionHandler
}

func newActionFixture() *actionFixture {
	f := &actionFixture{
		b:       &fakeBookings{},
		ledger:  &memLedger{},
		tokens:  token.New("action-secret").WithClock(func() time.Time { return epoch }),
		metrics: metrics.New(),
	}
	f.h = NewBookingActionHandler(f.b, f.tokens, f.ledger, f.metrics, discard())
	return f
}

func (f *actionFixture) issue(t *testing.T, id, action string) string {
	t.Helper()
	raw, err := f.tokens.Issue(id, action, time.Hour)
	require.NoError(t, err)
	return raw
}

func actionReq(method, id, action, raw string) *http.Request {
	return httptest.NewRequest(method, fmt.Sprintf("/v1/bookings/%s/%s?token=%s", id, action, raw), nil)
}

func TestCompleteWithValidToken(t *testing.T) {
	f := newActionFixture()
	raw := f.issue(t, "res-1", token.ActionComplete)

	rec := call(newEcho(), f.h.Complete, actionReq(http.MethodPatch, "res-1", "complete", raw), "id", "res-1")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	st := body["settlement"].(map[string]interface{})
	assert.Equal(t, "tr_1", st["transfer_id"])
	assert.True(t, f.ledger.used[raw])
}

func TestCompleteTokenIsSingleUse(t *testing.T) {
	f := newActionFixture()
	raw := f.issue(t, "res-1", token.ActionComplete)
	e := newEcho()

	first := call(e, f.h.Complete, actionReq(http.MethodGet, "res-1", "complete", raw), "id", "res-1")
	second := call(e, f.h.Complete, actionReq(http.MethodGet, "res-1", "complete", raw), "id", "res-1")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
	assert.Equal(t, 1, f.b.completeCalls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokenRejections.WithLabelValues("consumed")))
}

func TestActionTokenRejections(t *testing.T) {
	f := newActionFixture()
	expired := token.New("action-secret").WithClock(func() time.Time { return epoch.Add(-2 * time.Hour) })
	old, err := expired.Issue("res-1", token.ActionComplete, time.Hour)
	require.NoError(t, err)
	forged, err := token.New("other-secret").WithClock(func() time.Time { return epoch }).Issue("res-1", token.ActionComplete, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{"missing", "", "malformed"},
		{"garbage", "not-a-token", "malformed"},
		{"forged", forged, "signature_mismatch"},
		{"expired", old, "expired"},
		{"other reservation", f.issue(t, "res-2", token.ActionComplete), "scope_mismatch"},
		{"other action", f.issue(t, "res-1", token.ActionCancel), "scope_mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(newEcho(), f.h.Complete, actionReq(http.MethodPatch, "res-1", "complete", tc.raw), "id", "res-1")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
			assert.GreaterOrEqual(t, testutil.ToFloat64(f.metrics.TokenRejections.WithLabelValues(tc.reason)), 1.0)
		})
	}
	assert.Equal(t, 0, f.b.completeCalls)
}

func TestCompleteFailureReleasesToken(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("booking.Service.Complete: %w", booking.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("booking.Service.Complete: %w", settlement.ErrNoConnectedAccount), http.StatusConflict},
		{fmt.Errorf("booking.Service.Complete: %w: %w", settlement.ErrTransferFailed, errors.New("card_declined")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			f := newActionFixture()
			f.b.completeErr = tc.err
			raw := f.issue(t, "res-1", token.ActionComplete)

			rec := call(newEcho(), f.h.Complete, actionReq(http.MethodPatch, "res-1", "complete", raw), "id", "res-1")

			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, f.ledger.used[raw], "token must be usable again")
		})
	}
}

func TestCompleteWithLedgerOutage(t *testing.T) {
	f := newActionFixture()
	f.ledger.err = errors.New("redis down")
	raw := f.issue(t, "res-1", token.ActionComplete)

	rec := call(newEcho(), f.h.Complete, actionReq(http.MethodPatch, "res-1", "complete", raw), "id", "res-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCancel(t *testing.T) {
	f := newActionFixture()
	raw := f.issue(t, "res-1", token.ActionCancel)

	rec := call(newEcho(), f.h.Cancel, actionReq(http.MethodGet, "res-1", "cancel", raw), "id", "res-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["reservation"].(map[string]interface{})["status"])

	f.b.cancelErr = fmt.Errorf("booking.Service.Cancel: %w", settlement.ErrRefundFailed)
	raw = f.issue(t, "res-3", token.ActionCancel)
	rec = call(newEcho(), f.h.Cancel, actionReq(http.MethodGet, "res-3", "cancel", raw), "id", "res-3")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCheckout(t *testing.T) {
	f := newActionFixture()
	f.b.intent = payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}
	raw := f.issue(t, "res-1", token.ActionPay)
	e := newEcho()

	for i := 0; i < 2; i++ {
		rec := call(e, f.h.Checkout, actionReq(http.MethodPost, "res-1", "checkout", raw), "id", "res-1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"payment_intent_id":"pi_1","client_secret":"pi_1_secret"}`, rec.Body.String())
	}

	rec := call(e, f.h.Checkout, actionReq(http.MethodPost, "res-1", "checkout", f.issue(t, "res-1", token.ActionCancel)), "id", "res-1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
