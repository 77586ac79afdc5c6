package port

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of an atomic check-and-record call.
type RateLimitDecision struct {
	Allowed bool
	// Count is the number of attempts inside the window after this call.
	Count int
	// Oldest is the oldest attempt still inside the window, zero when none.
	Oldest time.Time
}

// RateLimitStore enforces sliding-window limits in a store shared by every instance.
type RateLimitStore interface {
	// Allow trims the window ending at now, and records an attempt only when fewer than limit remain.
	Allow(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (RateLimitDecision, error)
}
