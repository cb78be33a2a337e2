package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = time.Minute

type memLog struct {
	window time.Duration
	ts     []time.Time
}

// MemoryCounter keeps a sliding log of admitted timestamps per key in
// process memory.  It backs tests and single-instance deployments without
// Redis.  Keys whose window has emptied are dropped on the next sweep.
type MemoryCounter struct {
	mu        sync.Mutex
	logs      map[string]*memLog
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{logs: map[string]*memLog{}, now: time.Now}
}

// WithClock replaces the time source.
func (m *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryCounter) Take(_ context.Context, key string, limit int, window time.Duration) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= sweepEvery {
		m.sweep(now)
		m.lastSweep = now
	}

	l, ok := m.logs[key]
	if !ok {
		l = &memLog{}
		m.logs[key] = l
	}
	l.window = window
	l.ts = trim(l.ts, now.Add(-window))
	if len(l.ts) >= limit {
		return int64(len(l.ts)), false, nil
	}
	l.ts = append(l.ts, now)
	return int64(len(l.ts)), true, nil
}

// Len reports how many keys are tracked.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func (m *MemoryCounter) sweep(now time.Time) {
	for k, l := range m.logs {
		if len(trim(l.ts, now.Add(-l.window))) == 0 {
			delete(m.logs, k)
		}
	}
}

// trim drops timestamps at or before cutoff.  ts is ordered oldest first.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
