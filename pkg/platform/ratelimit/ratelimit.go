// Package ratelimit throttles write-heavy endpoints per user with a sliding
// window. The window is kept in memory for a single replica or in Redis when
// several replicas share the limit.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}

// Store counts events per key inside a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Memory is a process-local sliding window store.
type Memory struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string][]time.Time), now: time.Now}
}

// WithClock replaces the time source; used in tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stamps := prune(m.buckets[key], now.Add(-window))

	if len(stamps) >= limit {
		m.buckets[key] = stamps
		resetAt := stamps[0].Add(window)
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(now, resetAt),
		}, nil
	}

	stamps = append(stamps, now)
	m.buckets[key] = stamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// prune drops timestamps at or before cutoff. stamps is sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
