// Package ratelimit provides fixed-window request counters for the
// authentication endpoints.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/biller/internal/application/port"
)

// pruneEvery bounds how many calls pass between sweeps of expired windows
const pruneEvery = 256

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter counts requests per key in process memory. Counts are lost
// on restart and not shared between instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	calls   int
}

// NewMemoryLimiter creates an in-process limiter. A nil clock uses time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

// Allow implements port.RateLimiter
func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, windowSize time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%pruneEvery == 0 {
		l.prune(now)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(windowSize)}
		l.windows[key] = w
	}

	w.count++
	if w.count > limit {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

// Len returns the number of tracked windows
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

var _ port.RateLimiter = (*MemoryLimiter)(nil)
