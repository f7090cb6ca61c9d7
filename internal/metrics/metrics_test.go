package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Fatal("Handler() returned nil")
	}

	UpdatePoolMetrics(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"mapscrape_worker_pool_size",
		"mapscrape_worker_pool_acquired_total",
		"mapscrape_worker_pool_released_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %q not found in output", metric)
		}
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.0.0", "go1.22")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapscrape_build_info") {
		t.Error("Expected mapscrape_build_info metric")
	}
	if !strings.Contains(body, `version="1.0.0"`) {
		t.Error("Expected version label in build_info")
	}
	if !strings.Contains(body, `go_version="go1.22"`) {
		t.Error("Expected go_version label in build_info")
	}
}

func TestRecordRequest(t *testing.T) {
	RecordRequest("search", "ok", 1*time.Second)
	RecordRequest("search", "error", 500*time.Millisecond)
	RecordRequest("reviews", "ok", 2*time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapscrape_requests_total") {
		t.Error("Expected mapscrape_requests_total metric")
	}
	if !strings.Contains(body, "mapscrape_request_duration_seconds") {
		t.Error("Expected mapscrape_request_duration_seconds metric")
	}
}

func TestRecordScrapeOutcome(t *testing.T) {
	RecordScrapeOutcome("search", "ok")
	RecordScrapeOutcome("reviews", "error")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapscrape_scrape_outcomes_total") {
		t.Error("Expected mapscrape_scrape_outcomes_total metric")
	}
}

func TestRecordReviewBatch(t *testing.T) {
	RecordReviewBatch("worker", 5)
	RecordReviewBatch("continuation", 3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapscrape_review_batches_fetched_total") {
		t.Error("Expected mapscrape_review_batches_fetched_total metric")
	}
	if !strings.Contains(body, "mapscrape_reviews_streamed_total") {
		t.Error("Expected mapscrape_reviews_streamed_total metric")
	}
}

func TestUpdatePoolMetrics(t *testing.T) {
	UpdatePoolMetrics(4)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapscrape_worker_pool_size 4") {
		t.Error("Expected worker_pool_size to be 4")
	}
}

func TestStartMemoryCollector(t *testing.T) {
	stopCh := make(chan struct{})

	go StartMemoryCollector(50*time.Millisecond, stopCh)
	time.Sleep(150 * time.Millisecond)
	close(stopCh)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapscrape_memory_usage_bytes") {
		t.Error("Expected mapscrape_memory_usage_bytes metric")
	}
	if !strings.Contains(body, "mapscrape_memory_sys_bytes") {
		t.Error("Expected mapscrape_memory_sys_bytes metric")
	}
	if !strings.Contains(body, "mapscrape_goroutines") {
		t.Error("Expected mapscrape_goroutines metric")
	}
}
