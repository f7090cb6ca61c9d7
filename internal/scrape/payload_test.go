package scrape

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/unixpickle/mapscrape/internal/types"
)

func TestParsePayloadEmptyBatch(t *testing.T) {
	batch, err := parsePayload(`[[], null, ""]`)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(batch.Reviews) != 0 {
		t.Errorf("expected 0 reviews, got %d", len(batch.Reviews))
	}
	if batch.Continuation != "" {
		t.Errorf("expected no continuation, got %q", batch.Continuation)
	}
}

func TestParsePayloadUsesLastNonEmptyLine(t *testing.T) {
	body := "garbage not json\n" + `[[], "next-token", ""]` + "\n\n"
	batch, err := parsePayload(body)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if batch.Continuation != "next-token" {
		t.Errorf("Continuation = %q, want next-token", batch.Continuation)
	}
}

func TestParsePayloadNativeRating(t *testing.T) {
	// metadata[2] = timestamp*1e6, metadata[4][0][4] = author.
	metadata := []any{nil, nil, float64(5_000_000), nil, []any{[]any{nil, nil, nil, nil, "Alice"}}}
	content := []any{[]any{4.0}, nil, nil, nil, nil, nil, nil, nil, nil, []any{nil}}
	entry := []any{[]any{nil, metadata, content}}
	r := []any{[]any{entry}, nil, ""}
	body, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	batch, err := parsePayload(string(body))
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(batch.Reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(batch.Reviews))
	}
	rev := batch.Reviews[0]
	if rev.Author != "Alice" {
		t.Errorf("Author = %q, want Alice", rev.Author)
	}
	if rev.Timestamp != 5.0 {
		t.Errorf("Timestamp = %v, want 5.0", rev.Timestamp)
	}
	if rev.Rating != 4.0 {
		t.Errorf("Rating = %v, want 4.0", rev.Rating)
	}
	if rev.Text != "" {
		t.Errorf("Text = %q, want empty (structural sentinel last content element)", rev.Text)
	}
}

func TestParsePayloadExternalSiteRating(t *testing.T) {
	// content[0] = nil, content[8] = [nil, 4, "4/5", "0"] -> rating = clamp(5/5*4,1,5) = 4.0
	metadata := []any{nil, nil, float64(0), nil, []any{[]any{nil, nil, nil, nil, "Bob"}}}
	content := []any{nil, nil, nil, nil, nil, nil, nil, nil, []any{nil, 4.0, "4/5", "0"}, []any{"sentinel"}}
	entry := []any{[]any{nil, metadata, content}}
	r := []any{[]any{entry}, nil, ""}
	body, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	batch, err := parsePayload(string(body))
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(batch.Reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(batch.Reviews))
	}
	if got := batch.Reviews[0].Rating; got != 4.0 {
		t.Errorf("Rating = %v, want 4.0", got)
	}
}

func TestParsePayloadRatingAlwaysInBounds(t *testing.T) {
	cases := []struct {
		raw, divisor float64
	}{
		{0, 10}, {10, 10}, {100, 10}, {-5, 5}, {1, 1},
	}
	for _, c := range cases {
		content := []any{nil, nil, nil, nil, nil, nil, nil, nil, []any{nil, c.raw, "x/" + ftoa(c.divisor), "0"}, []any{"s"}}
		rating, err := parseRating(content, "content")
		if err != nil {
			t.Fatalf("parseRating(%v): %v", c, err)
		}
		if rating < 1.0 || rating > 5.0 {
			t.Errorf("rating %v out of [1,5] bounds for case %v", rating, c)
		}
	}
}

func TestParsePayloadFatalOnBadShape(t *testing.T) {
	_, err := parsePayload(`"not an array"`)
	if err == nil {
		t.Fatal("expected an error")
	}
	var fatal *types.FatalParseError
	if !errors.As(err, &fatal) {
		t.Errorf("expected a FatalParseError, got %T: %v", err, err)
	}
}

func ftoa(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
