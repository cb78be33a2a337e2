package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenConsumed is returned when a single-use token is presented again.
// Handlers report it as an invalid token.
var ErrTokenConsumed = errors.New("token already used")

// Ledger remembers consumed tokens until they expire.  A nil client turns
// the ledger into a no-op so tokens stay reusable until expiry.
type Ledger struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewLedger(rdb *redis.Client, prefix string) *Ledger {
	if prefix == "" {
		prefix = "tok"
	}
	return &Ledger{rdb: rdb, prefix: prefix, now: time.Now}
}

// Enabled reports whether consumption is tracked.
func (l *Ledger) Enabled() bool { return l != nil && l.rdb != nil }

// Consume marks raw as used.  The key lives until the token would have
// expired anyway.
func (l *Ledger) Consume(ctx context.Context, raw string, expiresAt time.Time) error {
	const op = "token.Ledger.Consume"

	if !l.Enabled() {
		return nil
	}
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return ErrTokenConsumed
	}
	ok, err := l.rdb.SetNX(ctx, l.key(raw), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return ErrTokenConsumed
	}
	return nil
}

// Release forgets a consumption so the token can be used again.  It is
// called when the guarded operation failed before changing any state.
func (l *Ledger) Release(ctx context.Context, raw string) error {
	const op = "token.Ledger.Release"

	if !l.Enabled() {
		return nil
	}
	if err := l.rdb.Del(ctx, l.key(raw)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *Ledger) key(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return l.prefix + ":" + hex.EncodeToString(sum[:])
}
