package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/unixpickle/mapscrape/internal/humanize"
	"github.com/unixpickle/mapscrape/internal/types"
)

// DefaultPollInterval and DefaultDeadline are the retry loop's defaults:
// poll once a second, give up after ten seconds total.
const (
	DefaultPollInterval = time.Second
	DefaultDeadline     = 10 * time.Second
)

// pollJitter keeps successive probes from falling into a fixed-interval
// rhythm that's trivial to fingerprint.
const pollJitter = 0.2

// probe is one attempt at producing a T from the live page. It returns a
// recoverable *types.ParseError when the expected DOM shape isn't present
// yet, a *types.FatalParseError when the page's shape violates an
// invariant the parser relies on, types.ErrStaleReference when a located
// node went stale mid-probe, or any other error for a hard driver failure.
type probe[T any] func(ctx context.Context) (T, error)

// retry runs fn repeatedly, sleeping interval between attempts, until it
// succeeds, fails fatally, or deadline elapses.
func retry[T any](ctx context.Context, interval, deadline time.Duration, op string, fn probe[T]) (T, error) {
	var zero T
	var lastErr error
	giveUp := time.Now().Add(deadline)

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		if errors.Is(err, types.ErrStaleReference) {
			lastErr = err
		} else {
			var fatal *types.FatalParseError
			if errors.As(err, &fatal) {
				return zero, err
			}
			var parseErr *types.ParseError
			if !errors.As(err, &parseErr) {
				// Any other error is a hard driver failure: stop and
				// surface it rather than retrying.
				return zero, err
			}
			lastErr = err
		}

		if time.Now().After(giveUp) {
			return zero, types.NewTimeoutError(op, deadline, lastErr)
		}

		if !humanize.SleepWithJitter(ctx, interval, pollJitter) {
			return zero, ctx.Err()
		}
	}
}
