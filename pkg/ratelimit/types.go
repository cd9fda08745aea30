// Package ratelimit admits or rejects requests per client using a sliding
// window of recent admissions.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the oldest admission leaves the window.
	// Zero when allowed.
	RetryAfter time.Duration
}

// Limiter checks and records one attempt for key at now.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}
