package ratelimit

import (
	"context"
	"sync"
	"time"
)

type slidingWindow struct {
	mu     sync.Mutex
	stamps []time.Time
	// dead marks a window removed by a sweep; holders must look it up again.
	dead bool
}

// MemoryLimiter implements a sliding-window in-memory rate limiter. Each key
// has its own lock, so distinct clients never wait on each other. Windows of
// idle clients are swept at most once per window length.
type MemoryLimiter struct {
	mu        sync.RWMutex
	windows   map[string]*slidingWindow
	lastSweep time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*slidingWindow),
	}
}

func (l *MemoryLimiter) window(key string) *slidingWindow {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[key]; ok {
		return w
	}
	w = &slidingWindow{}
	l.windows[key] = w
	return w
}

// Allow prunes admissions at or before now-window, then admits and records
// now if fewer than limit remain. Rejected attempts are not recorded.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{Allowed: true}, nil
	}
	for {
		w := l.window(key)
		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		res := w.admit(limit, window, now)
		w.mu.Unlock()

		l.maybeSweep(now, window)
		return res, nil
	}
}

func (w *slidingWindow) admit(limit int, window time.Duration, now time.Time) Result {
	cutoff := now.Add(-window)
	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}

	if len(w.stamps) >= limit {
		retry := w.stamps[0].Add(window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	// Keep the sequence non-decreasing if the clock steps backwards.
	if n := len(w.stamps); n > 0 && now.Before(w.stamps[n-1]) {
		now = w.stamps[n-1]
	}
	w.stamps = append(w.stamps, now)
	return Result{Allowed: true, Remaining: limit - len(w.stamps)}
}

func (l *MemoryLimiter) maybeSweep(now time.Time, window time.Duration) {
	l.mu.RLock()
	due := now.Sub(l.lastSweep) >= window
	l.mu.RUnlock()
	if due {
		l.Sweep(now, window)
	}
}

// Sweep removes windows whose admissions all fall at or before now-window
// and returns how many were removed.
func (l *MemoryLimiter) Sweep(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSweep = now

	removed := 0
	for key, w := range l.windows {
		w.mu.Lock()
		if n := len(w.stamps); n == 0 || !w.stamps[n-1].After(cutoff) {
			w.dead = true
			delete(l.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked client windows.
func (l *MemoryLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.windows)
}

// Count returns the admissions currently recorded for key without pruning.
func (l *MemoryLimiter) Count(key string) int {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stamps)
}
