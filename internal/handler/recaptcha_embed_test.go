package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traverum/booking-service/internal/embed"
	"github.com/traverum/booking-service/internal/recaptcha"
)

type fakeVerifier struct {
	res recaptcha.Result
	err error
}

func (f fakeVerifier) Verify(context.Context, string, string) (recaptcha.Result, error) {
	return f.res, f.err
}

func TestRecaptchaVerify(t *testing.T) {
	cases := []struct {
		name   string
		v      fakeVerifier
		status int
		want   string
	}{
		{"human", fakeVerifier{res: recaptcha.Result{Success: true, Score: 0.9}}, http.StatusOK, `{"success":true,"score":0.9}`},
		{"skipped", fakeVerifier{res: recaptcha.Result{Success: true, Skipped: true}}, http.StatusOK, `{"success":true,"score":0,"skipped":true}`},
		{"low score", fakeVerifier{res: recaptcha.Result{Score: 0.2}, err: recaptcha.ErrLowScore}, http.StatusBadRequest, `{"success":false,"error":"recaptcha verification failed","score":0.2}`},
		{"missing", fakeVerifier{err: recaptcha.ErrMissingToken}, http.StatusBadRequest, `{"success":false,"error":"token required"}`},
		{"google down", fakeVerifier{err: errors.New("timeout")}, http.StatusBadGateway, `{"success":false,"error":"verification unavailable"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRecaptchaHandler(tc.v, discard())
			rec := call(newEcho(), h.Verify, jsonReq(http.MethodPost, "/v1/recaptcha/verify", `{"token":"tok"}`))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.want, rec.Body.String())
		})
	}
}

type fakeWidgets struct {
	w   embed.Widget
	err error
}

func (f fakeWidgets) Widget(context.Context, string) (embed.Widget, error) { return f.w, f.err }

func TestEmbedWidget(t *testing.T) {
	w := embed.Widget{Hotel: embed.Hotel{ID: "hotel-1", Name: "Grand", Slug: "grand"}, Experiences: []embed.Item{}}
	rec := call(newEcho(), NewEmbedHandler(fakeWidgets{w: w}, discard()).Widget, httptest.NewRequest(http.MethodGet, "/v1/embed/grand", nil), "slug", "grand")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=30", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"hotel":{"id":"hotel-1","name":"Grand","slug":"grand"},"experiences":[]}`, rec.Body.String())

	rec = call(newEcho(), NewEmbedHandler(fakeWidgets{err: embed.ErrUnknownHotel}, discard()).Widget, httptest.NewRequest(http.MethodGet, "/v1/embed/none", nil), "slug", "none")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmbedScript(t *testing.T) {
	rec := call(newEcho(), Script, httptest.NewRequest(http.MethodGet, "/embed.js", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/javascript")
	assert.Contains(t, rec.Body.String(), "traverum-resize")
}

func TestHealth(t *testing.T) {
	rec := call(newEcho(), Health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
