// Package ratelimit throttles outbound calls to the search API.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates outbound calls. Acquire blocks until the next call may be
// issued and only fails when ctx ends first.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// IntervalLimiter enforces a minimum delay between consecutive acquisitions
// using a token bucket with a burst of one.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewInterval creates a limiter that lets one caller through per interval.
// A non-positive interval disables throttling.
func NewInterval(interval time.Duration) *IntervalLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalLimiter{limiter: rate.NewLimiter(limit, 1)}
}

func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
