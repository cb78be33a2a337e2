// Package ratelimit implements a sliding-window request limiter keyed by
// client.  The limiter keeps no state of its own; counts live behind the
// Counter interface so several server instances can share them in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Counter records an event for key only while fewer than limit events fall
// in the trailing window.  It returns the number of recorded events in the
// window after the call and whether this one was recorded.
type Counter interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (count int64, admitted bool, err error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits at most Limit requests per Window for each client key.
type Limiter struct {
	name    string
	prefix  string
	limit   int
	window  time.Duration
	counter Counter
}

// New returns a limiter for one policy.  name separates the key space of
// policies sharing a counter store.
func New(counter Counter, prefix, name string, limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{name: name, prefix: prefix, limit: limit, window: window, counter: counter}
}

func (l *Limiter) Name() string { return l.name }
func (l *Limiter) Limit() int   { return l.limit }

// Allow decides whether the request may proceed.  Only admitted requests
// occupy the window.
func (l *Limiter) Allow(ctx context.Context, clientKey string) (Decision, error) {
	const op = "ratelimit.Limiter.Allow"

	n, ok, err := l.counter.Take(ctx, l.key(clientKey), l.limit, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, fmt.Errorf("%s: %w", op, err)
	}
	d := Decision{Limit: l.limit, Allowed: ok}
	if ok {
		d.Remaining = max(l.limit-int(n), 0)
		return d, nil
	}
	d.RetryAfter = l.window
	return d, nil
}

func (l *Limiter) key(clientKey string) string {
	if l.prefix == "" {
		return l.name + ":" + clientKey
	}
	return l.prefix + ":" + l.name + ":" + clientKey
}
