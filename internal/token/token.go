// Package token issues and verifies the signed, expiring action tokens that
// are embedded in guest and operational links (?token=...).
//
// A token is base64url(JSON{data, signature}) where data is the JSON string
// {"id","action","exp"} and signature is the hex HMAC-SHA256 of data under a
// server-held secret.  Verification is stateless: a token is valid while the
// signature matches and exp has not passed.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Well known actions carried by tokens.
const (
	ActionComplete = "complete"
	ActionCancel   = "cancel"
	ActionPay      = "pay"
)

// ErrInvalidToken is the only failure surfaced to callers.  Malformed,
// expired and forged tokens are indistinguishable from the outside.
var ErrInvalidToken = errors.New("invalid token")

// Result classifies a token internally.
type Result int

const (
	OK Result = iota
	Malformed
	Expired
	SignatureMismatch
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Malformed:
		return "malformed"
	case Expired:
		return "expired"
	case SignatureMismatch:
		return "signature_mismatch"
	}
	return "unknown"
}

// Payload is the signed part of a token.  Exp is Unix milliseconds.
type Payload struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Exp    int64  `json:"exp"`
}

// ExpiresAt returns Exp as a time.
func (p Payload) ExpiresAt() time.Time {
	return time.UnixMilli(p.Exp).UTC()
}

type envelope struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// Service signs and verifies action tokens with a single secret.
type Service struct {
	secret []byte
	now    func() time.Time
}

// New returns a Service using secret.  It panics on an empty secret since
// every token would then be forgeable.
func New(secret string) *Service {
	if secret == "" {
		panic("token: empty secret")
	}
	return &Service{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of s that reads the time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{secret: s.secret, now: now}
}

// Issue signs a token authorising action on subjectID for ttl.
func (s *Service) Issue(subjectID, action string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subjectID) == "" || strings.TrimSpace(action) == "" || ttl <= 0 {
		return "", errors.New("token: subject, action and positive ttl are required")
	}
	data, err := json.Marshal(Payload{
		ID:     subjectID,
		Action: action,
		Exp:    s.now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	env, err := json.Marshal(envelope{
		Data:      string(data),
		Signature: s.sign(data),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(env), nil
}

// Inspect decodes and checks a token, reporting the precise outcome.  The
// payload is only meaningful when the result is OK.
func (s *Service) Inspect(raw string) (Payload, Result) {
	blob, err := decode(raw)
	if err != nil {
		return Payload{}, Malformed
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil || env.Data == "" || env.Signature == "" {
		return Payload{}, Malformed
	}
	got, err := hex.DecodeString(env.Signature)
	if err != nil {
		return Payload{}, Malformed
	}
	if !hmac.Equal(got, s.mac([]byte(env.Data))) {
		return Payload{}, SignatureMismatch
	}
	var p Payload
	if err := json.Unmarshal([]byte(env.Data), &p); err != nil || p.ID == "" || p.Action == "" {
		return Payload{}, Malformed
	}
	if s.now().UnixMilli() > p.Exp {
		return Payload{}, Expired
	}
	return p, OK
}

// Verify returns the payload of a valid token or ErrInvalidToken.
func (s *Service) Verify(raw string) (Payload, error) {
	p, res := s.Inspect(raw)
	if res != OK {
		return Payload{}, ErrInvalidToken
	}
	return p, nil
}

// VerifyFor verifies raw and additionally requires it to be bound to
// subjectID and action.
func (s *Service) VerifyFor(raw, subjectID, action string) (Payload, error) {
	p, err := s.Verify(raw)
	if err != nil {
		return Payload{}, err
	}
	if p.ID != subjectID || p.Action != action {
		return Payload{}, ErrInvalidToken
	}
	return p, nil
}

func (s *Service) mac(data []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(data)
	return h.Sum(nil)
}

func (s *Service) sign(data []byte) string {
	return hex.EncodeToString(s.mac(data))
}

// decode accepts padded and unpadded base64url since links are built by
// more than one client.
func decode(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty")
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
}
