package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/traverum/booking-service/internal/booking"
	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/repository"
)

type fakePartners map[string]*model.Partner

func (f fakePartners) GetByEmail(_ context.Context, email string) (*model.Partner, error) {
	if p, ok := f[email]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("repository.PartnerRepo.GetByEmail: %w", repository.ErrNotFound)
}

func partnerFixture(t *testing.T) (*PartnerHandler, *fakeBookings) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	partners := fakePartners{"sup@example.com": {ID: "sup-1", DisplayName: "Boat Co", Email: "sup@example.com", PasswordHash: string(hash)}}
	b := &fakeBookings{}
	return NewPartnerHandler(partners, b, "jwt-secret", 15, discard()), b
}

// asPartner mimics PartnerAuth having run.
func asPartner(h echo.HandlerFunc, id string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set("partner_id", id)
		return h(c)
	}
}

func TestPartnerLogin(t *testing.T) {
	h, _ := partnerFixture(t)

	rec := call(newEcho(), h.Login, jsonReq(http.MethodPost, "/v1/partner/auth/login", `{"email":"SUP@example.com","password":"hunter22"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	raw := body["access"].(map[string]interface{})["token"].(string)
	tok, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte("jwt-secret"), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "sup-1", claims["sub"])
	assert.Equal(t, "partner", claims["role"])
	assert.Equal(t, "Boat Co", body["partner"].(map[string]interface{})["display_name"])
}

func TestPartnerLoginRejected(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"wrong password", `{"email":"sup@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"who@example.com","password":"hunter22"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"sup@example.com"}`, http.StatusUnprocessableEntity},
		{"broken body", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := partnerFixture(t)
			rec := call(newEcho(), h.Login, jsonReq(http.MethodPost, "/v1/partner/auth/login", tc.body))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestPartnerRequests(t *testing.T) {
	h, b := partnerFixture(t)
	deadline := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	b.pending = []model.Reservation{{ID: "res-1", ResponseDeadline: deadline, Status: model.StatusPending}}

	rec := call(newEcho(), asPartner(h.Requests, "sup-1"), httptest.NewRequest(http.MethodGet, "/v1/partner/requests", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sup-1", b.supplierID)
	list := decode(t, rec)["requests"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "res-1", list[0].(map[string]interface{})["id"])
}

func TestPartnerRequestsEmptyIsArray(t *testing.T) {
	h, _ := partnerFixture(t)
	rec := call(newEcho(), asPartner(h.Requests, "sup-1"), httptest.NewRequest(http.MethodGet, "/v1/partner/requests", nil))
	assert.JSONEq(t, `{"requests":[]}`, rec.Body.String())
}

func TestPartnerConfirmReturnsLinks(t *testing.T) {
	h, b := partnerFixture(t)
	b.links = booking.Links{Pay: "https://x/pay", Cancel: "https://x/cancel", Complete: "https://x/complete"}

	rec := call(newEcho(), asPartner(h.Confirm, "sup-1"), httptest.NewRequest(http.MethodPost, "/v1/partner/reservations/res-1/confirm", nil), "id", "res-1")

	require.Equal(t, http.StatusOK, rec.Code)
	links := decode(t, rec)["links"].(map[string]interface{})
	assert.Equal(t, "https://x/pay", links["pay"])
	assert.Equal(t, "https://x/complete", links["complete"])
}

func TestPartnerDecisionErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{booking.ErrForbidden, http.StatusForbidden},
		{booking.ErrNotFound, http.StatusNotFound},
		{booking.ErrInvalidTransition, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h, b := partnerFixture(t)
			b.confirmErr = fmt.Errorf("op: %w", tc.err)
			req := httptest.NewRequest(http.MethodPost, "/v1/partner/reservations/res-1/decline", nil)
			rec := call(newEcho(), asPartner(h.Decline, "sup-2"), req, "id", "res-1")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "sup-2", b.supplierID)
		})
	}
}
