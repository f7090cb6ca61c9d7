package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unixpickle/mapscrape/internal/config"
	"github.com/unixpickle/mapscrape/internal/pool"
	"github.com/unixpickle/mapscrape/internal/stream"
	"github.com/unixpickle/mapscrape/internal/types"
)

// fakeScraper is a Scraper implementation driven entirely by test fixtures,
// so handler tests never touch a real browser.
type fakeScraper struct {
	searchResult types.SearchResult
	searchErr    error

	firstBatch types.ReviewBatch
	reviewsErr error
}

func (f *fakeScraper) Search(ctx context.Context, query string, geo types.GeoLocation) (types.SearchResult, error) {
	if f.searchErr != nil {
		return types.SearchResult{}, f.searchErr
	}
	return f.searchResult, nil
}

func (f *fakeScraper) ListReviews(ctx context.Context, placeURL string, geo types.GeoLocation) (types.ReviewBatch, string, error) {
	if f.reviewsErr != nil {
		return types.ReviewBatch{}, "", f.reviewsErr
	}
	return f.firstBatch, placeURL, nil
}

func (f *fakeScraper) Close() error { return nil }

// testingHelper is the subset of *testing.T and *testing.B that
// testHandler needs, so the same construction helper serves both tests and
// benchmarks.
type testingHelper interface {
	Helper()
	Cleanup(func())
	Fatalf(format string, args ...interface{})
}

// testHandler builds a Handler backed by a single-capacity pool around a
// fake scraper. The locator and selectors manager are left nil, which the
// handler is documented to tolerate.
func testHandler(t testingHelper, s *fakeScraper) *Handler {
	t.Helper()
	cfg := &config.Config{
		PoolSize:       1,
		PoolTimeout:    time.Second,
		DefaultTimeout: time.Second,
	}
	p, err := pool.New[Scraper](context.Background(), 1, func(context.Context) (Scraper, error) {
		return s, nil
	})
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Close(func(w Scraper) error { return w.Close() })
	})
	return New(cfg, p, nil, nil)
}

func TestHandleSearchMissingQuery(t *testing.T) {
	h := testHandler(t, &fakeScraper{})
	req := httptest.NewRequest("GET", "/api/search?latitude=1&longitude=2&accuracy=3", nil)
	w := httptest.NewRecorder()

	h.handleSearch(w, req)

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestHandleSearchSuccess(t *testing.T) {
	result := types.SearchResult{
		Kind: types.Single,
		Locations: []types.LocationInfo{
			{Name: "Cafe Aroma", URL: "https://maps.example/place/1", Tags: []string{"cafe"}},
		},
	}
	h := testHandler(t, &fakeScraper{searchResult: result})

	req := httptest.NewRequest("GET", "/api/search?query=coffee&latitude=37.7&longitude=-122.4&accuracy=10", nil)
	w := httptest.NewRecorder()

	h.handleSearch(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []types.LocationInfo
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Cafe Aroma" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestHandleSearchScrapeFailureReturns200(t *testing.T) {
	h := testHandler(t, &fakeScraper{searchErr: errors.New("browser crashed")})

	req := httptest.NewRequest("GET", "/api/search?query=coffee&latitude=1&longitude=2&accuracy=3", nil)
	w := httptest.NewRecorder()

	h.handleSearch(w, req)

	// Failures originating in the scrape pipeline itself still report 200,
	// with the error carried in the JSON body.
	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message in the body")
	}
}

func TestHandleReviewsRejectsInvalidURL(t *testing.T) {
	h := testHandler(t, &fakeScraper{})

	req := httptest.NewRequest("GET", "/api/reviews?url=not-a-url&latitude=1&longitude=2&accuracy=3", nil)
	w := httptest.NewRecorder()

	h.handleReviews(w, req)

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleLocationWithoutLocator(t *testing.T) {
	h := testHandler(t, &fakeScraper{})

	req := httptest.NewRequest("GET", "/api/location", nil)
	w := httptest.NewRecorder()

	h.handleLocation(w, req)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if body != "null\n" {
		t.Errorf("body = %q, want null", body)
	}
}

func TestHandleHealthReportsPoolStats(t *testing.T) {
	h := testHandler(t, &fakeScraper{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	h.handleHealth(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHandleStaticServesIndexOnly(t *testing.T) {
	h := testHandler(t, &fakeScraper{})

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.handleStatic(w, req)
	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/missing", nil)
	w = httptest.NewRecorder()
	h.handleStatic(w, req)
	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStreamRemainingBatchesStopsOnDoneWithoutContinuation(t *testing.T) {
	// A batch with no continuation token exhausts the stream immediately;
	// this exercises the depth-1 channel draining to completion with zero
	// extra batches fetched over HTTP.
	h := testHandler(t, &fakeScraper{})
	s, _ := stream.New(h.httpClient, "https://maps.example/place/1", types.ReviewBatch{})

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	h.streamRemainingBatches(context.Background(), s, bw, nil)

	if buf.Len() != 0 {
		t.Errorf("expected no additional output, got %q", buf.String())
	}
}
