// Package humanize provides context-aware sleep helpers that add jitter to
// polling intervals, so repeated DOM probes don't fall into a detectable
// fixed-interval rhythm.
package humanize

import (
	"context"
	"math/rand"
	"time"
)

// RandomDuration returns a random duration between min and max milliseconds.
func RandomDuration(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	ms := minMs + rand.Intn(maxMs-minMs+1)
	return time.Duration(ms) * time.Millisecond
}

// sleepWithContext sleeps for the specified duration or until context is
// canceled. Returns true if the sleep completed normally, false if
// interrupted. Uses time.NewTimer instead of time.After to prevent a timer
// leak when the context is canceled early.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// SleepWithContext sleeps for the specified duration or until context is
// canceled. Returns true if the sleep completed normally, false if
// interrupted.
func SleepWithContext(ctx context.Context, d time.Duration) bool {
	return sleepWithContext(ctx, d)
}

// SleepWithJitter sleeps for the given duration plus or minus a random
// jitter. jitterPercent is the maximum jitter as a fraction of base (0.0 to
// 1.0). For example, SleepWithJitter(ctx, time.Second, 0.2) sleeps for
// 0.8s-1.2s.
func SleepWithJitter(ctx context.Context, base time.Duration, jitterPercent float64) bool {
	if jitterPercent < 0 {
		jitterPercent = 0
	}
	if jitterPercent > 1 {
		jitterPercent = 1
	}

	jitterRange := float64(base) * jitterPercent
	jitter := (rand.Float64()*2 - 1) * jitterRange

	duration := time.Duration(float64(base) + jitter)
	if duration < 0 {
		duration = 0
	}

	return sleepWithContext(ctx, duration)
}
