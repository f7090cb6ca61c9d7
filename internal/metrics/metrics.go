// Package metrics provides Prometheus metrics for monitoring the scrape
// service.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests by route and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapscrape_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"route", "status"},
	)

	// RequestDuration tracks request duration by route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapscrape_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~205s
		},
		[]string{"route"},
	)

	// WorkerPoolSize shows the configured worker pool size.
	WorkerPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapscrape_worker_pool_size",
			Help: "Configured worker pool size",
		},
	)

	// WorkerPoolAcquired counts total worker acquisitions from the pool.
	WorkerPoolAcquired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mapscrape_worker_pool_acquired_total",
			Help: "Total worker acquisitions from pool",
		},
	)

	// WorkerPoolReleased counts total worker releases back to the pool.
	WorkerPoolReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mapscrape_worker_pool_released_total",
			Help: "Total worker releases back to pool",
		},
	)

	// ReviewBatchesFetched counts review batches fetched, by source.
	ReviewBatchesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapscrape_review_batches_fetched_total",
			Help: "Total review batches fetched, labeled by source (worker or continuation)",
		},
		[]string{"source"},
	)

	// ReviewsStreamed counts individual reviews written to clients.
	ReviewsStreamed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mapscrape_reviews_streamed_total",
			Help: "Total individual reviews written to clients",
		},
	)

	// ScrapeOutcomes counts scrape driver outcomes by operation and result.
	ScrapeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapscrape_scrape_outcomes_total",
			Help: "Total scrape operations by operation name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// MemoryUsageBytes shows current memory usage.
	MemoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapscrape_memory_usage_bytes",
			Help: "Current memory usage in bytes (alloc)",
		},
	)

	// MemorySysBytes shows system memory obtained.
	MemorySysBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapscrape_memory_sys_bytes",
			Help: "Total memory obtained from system",
		},
	)

	// GoroutineCount shows current goroutine count.
	GoroutineCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapscrape_goroutines",
			Help: "Current number of goroutines",
		},
	)

	// BuildInfo provides build information as labels.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapscrape_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		WorkerPoolSize,
		WorkerPoolAcquired,
		WorkerPoolReleased,
		ReviewBatchesFetched,
		ReviewsStreamed,
		ScrapeOutcomes,
		MemoryUsageBytes,
		MemorySysBytes,
		GoroutineCount,
		BuildInfo,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// StartMemoryCollector starts a goroutine that periodically updates memory metrics.
func StartMemoryCollector(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateMemoryMetrics()
		case <-stopCh:
			return
		}
	}
}

func updateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsageBytes.Set(float64(m.Alloc))
	MemorySysBytes.Set(float64(m.Sys))
	GoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RecordRequest records metrics for a completed HTTP request.
func RecordRequest(route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(route, status).Inc()
	RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordScrapeOutcome records the outcome of a single scrape operation.
func RecordScrapeOutcome(operation, outcome string) {
	ScrapeOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordReviewBatch records a fetched review batch and its review count.
func RecordReviewBatch(source string, reviewCount int) {
	ReviewBatchesFetched.WithLabelValues(source).Inc()
	ReviewsStreamed.Add(float64(reviewCount))
}

// UpdatePoolMetrics updates worker pool gauges.
func UpdatePoolMetrics(size int) {
	WorkerPoolSize.Set(float64(size))
}
