package rate

import (
	"context"
	"time"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// Threshold is the number of requests admitted per window per key.
	Threshold int
	// Window is the counting window duration.
	Window time.Duration
}

// Decision is the outcome of a single admit/reject check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is the admit/reject contract shared by all backends.
// Allow atomically increments the counter for key and reports whether the
// request is within budget. A single call covers both the increment and
// the check so concurrent requests cannot undercount.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
