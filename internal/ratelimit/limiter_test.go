package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLimiterAdmitsExactlyLimitPerWindow(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(NewMemoryCounter().WithClock(clk.now), "rl", "reservations", 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, d.Remaining)
		clk.t = clk.t.Add(time.Second)
	}

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "a new key is tracked independently")
}

func TestLimiterWindowSlides(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(NewMemoryCounter().WithClock(clk.now), "", "embed", 2, time.Minute)
	ctx := context.Background()

	first, _ := l.Allow(ctx, "k")
	clk.t = clk.t.Add(30 * time.Second)
	second, _ := l.Allow(ctx, "k")
	clk.t = clk.t.Add(20 * time.Second)
	third, _ := l.Allow(ctx, "k")
	assert.True(t, first.Allowed)
	assert.True(t, second.Allowed)
	assert.False(t, third.Allowed)

	// 60s after the first request it drops out of the window, freeing one
	// slot; the rejected third request never took one.
	clk.t = clk.t.Add(10 * time.Second)
	fourth, _ := l.Allow(ctx, "k")
	assert.True(t, fourth.Allowed)
	fifth, _ := l.Allow(ctx, "k")
	assert.False(t, fifth.Allowed)
}

func TestLimiterRejectedBurstsDoNotExtendTheWindow(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(NewMemoryCounter().WithClock(clk.now), "rl", "reservations", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, _ := l.Allow(ctx, "k")
		require.True(t, d.Allowed)
	}
	clk.t = clk.t.Add(30 * time.Second)
	for i := 0; i < 5; i++ {
		d, _ := l.Allow(ctx, "k")
		require.False(t, d.Allowed, "burst request %d", i+1)
	}

	clk.t = clk.t.Add(31 * time.Second)
	admitted := 0
	for i := 0; i < 5; i++ {
		if d, _ := l.Allow(ctx, "k"); d.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestMemoryCounterDropsIdleKeys(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCounter().WithClock(clk.now)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, ok, err := c.Take(ctx, k, 1, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, _, _ = c.Take(ctx, "long", 1, time.Hour)
	assert.Equal(t, 4, c.Len())

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok, err := c.Take(ctx, "d", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len(), "only the hour-long key and the new one remain")

	_, ok, _ = c.Take(ctx, "long", 1, time.Hour)
	assert.False(t, ok, "a longer window keeps its events across sweeps")
}

type failingCounter struct{}

func (failingCounter) Take(context.Context, string, int, time.Duration) (int64, bool, error) {
	return 0, false, errors.New("store unavailable")
}

func TestLimiterFailsOpen(t *testing.T) {
	l := New(failingCounter{}, "rl", "reservations", 1, time.Minute)
	d, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

func TestNewNormalisesPolicy(t *testing.T) {
	l := New(NewMemoryCounter(), "rl", "x", 0, 0)
	assert.Equal(t, 1, l.Limit())
	assert.Equal(t, time.Minute, l.window)
	assert.Equal(t, "rl:x:k", l.key("k"))
}

func TestClientKey(t *testing.T) {
	cases := []struct {
		name string
		xff  string
		want string
	}{
		{"absent", "", Anonymous},
		{"single", "203.0.113.7", "203.0.113.7"},
		{"chain", " 203.0.113.7 , 10.0.0.1, 10.0.0.2", "203.0.113.7"},
		{"empty first", " ,10.0.0.1", Anonymous},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, ClientKey(r))
		})
	}
}
