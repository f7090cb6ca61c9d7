package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unixpickle/mapscrape/internal/types"
)

func TestRetrySucceedsImmediately(t *testing.T) {
	calls := 0
	got, err := retry(context.Background(), time.Millisecond, time.Second, "op", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryRecoversFromStaleReference(t *testing.T) {
	calls := 0
	got, err := retry(context.Background(), time.Millisecond, time.Second, "op", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, types.ErrStaleReference
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != 7 || calls != 3 {
		t.Errorf("got %d after %d calls, want 7 after 3", got, calls)
	}
}

func TestRetryRecoversFromRecoverableParseError(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), time.Millisecond, 20*time.Millisecond, "op", func(context.Context) (int, error) {
		calls++
		return 0, types.NewParseError("x", errors.New("not ready yet"))
	})
	var timeout *types.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if calls < 2 {
		t.Errorf("expected multiple attempts before deadline, got %d", calls)
	}
}

func TestRetryStopsImmediatelyOnFatalParseError(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), time.Millisecond, time.Second, "op", func(context.Context) (int, error) {
		calls++
		return 0, types.NewFatalParseError("x", errors.New("schema changed"))
	})
	var fatal *types.FatalParseError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalParseError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestRetryStopsImmediatelyOnOtherDriverError(t *testing.T) {
	calls := 0
	sentinel := errors.New("connection reset")
	_, err := retry(context.Background(), time.Millisecond, time.Second, "op", func(context.Context) (int, error) {
		calls++
		return 0, types.NewDriverError("navigate", sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := retry(ctx, time.Millisecond, time.Second, "op", func(context.Context) (int, error) {
		return 0, types.NewParseError("x", errors.New("not ready"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
