// Package handlers implements the HTTP surface: place search, review
// streaming, IP-based geolocation, and static assets.
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unixpickle/mapscrape/internal/assets"
	"github.com/unixpickle/mapscrape/internal/config"
	"github.com/unixpickle/mapscrape/internal/geolocate"
	"github.com/unixpickle/mapscrape/internal/metrics"
	"github.com/unixpickle/mapscrape/internal/pool"
	"github.com/unixpickle/mapscrape/internal/security"
	"github.com/unixpickle/mapscrape/internal/selectors"
	"github.com/unixpickle/mapscrape/internal/stream"
	"github.com/unixpickle/mapscrape/internal/types"
)

// Handler wires the worker pool, selectors manager, and IP locator into the
// HTTP surface described by the service's routes.
type Handler struct {
	pool             *pool.WorkerPool[Scraper]
	cfg              *config.Config
	locator          *geolocate.Locator
	selectorsManager *selectors.Manager
	httpClient       *http.Client
}

// New builds a Handler. locator may be nil, in which case /api/location
// always reports null.
func New(cfg *config.Config, workerPool *pool.WorkerPool[Scraper], locator *geolocate.Locator, selectorsManager *selectors.Manager) *Handler {
	return &Handler{
		pool:             workerPool,
		cfg:              cfg,
		locator:          locator,
		selectorsManager: selectorsManager,
		httpClient:       &http.Client{Timeout: stream.DefaultFetchTimeout},
	}
}

// Routes registers the service's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/search", h.handleSearch)
	mux.HandleFunc("/api/reviews", h.handleReviews)
	mux.HandleFunc("/api/location", h.handleLocation)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/", h.handleStatic)
}

// geoFromQuery reads latitude, longitude, and accuracy from q.
func geoFromQuery(q query) (types.GeoLocation, error) {
	lat, err := q.Float64("latitude")
	if err != nil {
		return types.GeoLocation{}, err
	}
	lon, err := q.Float64("longitude")
	if err != nil {
		return types.GeoLocation{}, err
	}
	acc, err := q.Float64("accuracy")
	if err != nil {
		return types.GeoLocation{}, err
	}
	return types.GeoLocation{Latitude: lat, Longitude: lon, Accuracy: acc}, nil
}

// writeEndpointError writes the framework-level error envelope required for
// /api/search and /api/reviews: HTTP 200 with a JSON {"error": ...} body,
// since the failure originated in the scrape pipeline rather than in
// request parsing itself.
func writeEndpointError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeQueryError reports a malformed request itself, distinct from a
// scrape-pipeline failure, with a 400 status.
func writeQueryError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := newQuery(r.URL.Query())

	queryText, err := q.String("query")
	if err != nil {
		writeQueryError(w, err)
		metrics.RecordRequest("search", "bad_request", time.Since(start))
		return
	}
	geo, err := geoFromQuery(q)
	if err != nil {
		writeQueryError(w, err)
		metrics.RecordRequest("search", "bad_request", time.Since(start))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.PoolTimeout+h.cfg.DefaultTimeout)
	defer cancel()

	lease, err := h.pool.Lease(ctx)
	if err != nil {
		writeEndpointError(w, err)
		metrics.RecordRequest("search", "pool_error", time.Since(start))
		return
	}
	defer lease.Release()

	result, err := lease.Worker().Search(ctx, queryText, geo)
	if err != nil {
		log.Warn().Err(err).Str("query", queryText).Msg("search failed")
		writeEndpointError(w, err)
		metrics.RecordRequest("search", "error", time.Since(start))
		metrics.RecordScrapeOutcome("search", "error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
	metrics.RecordRequest("search", "ok", time.Since(start))
	metrics.RecordScrapeOutcome("search", "ok")
}

func (h *Handler) handleReviews(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := newQuery(r.URL.Query())

	placeURL, err := q.String("url")
	if err != nil {
		writeQueryError(w, err)
		metrics.RecordRequest("reviews", "bad_request", time.Since(start))
		return
	}
	geo, err := geoFromQuery(q)
	if err != nil {
		writeQueryError(w, err)
		metrics.RecordRequest("reviews", "bad_request", time.Since(start))
		return
	}
	if err := security.ValidateURLWithContext(r.Context(), placeURL); err != nil {
		writeQueryError(w, types.NewQueryError("url", err))
		metrics.RecordRequest("reviews", "bad_request", time.Since(start))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.PoolTimeout+h.cfg.DefaultTimeout)
	lease, err := h.pool.Lease(ctx)
	if err != nil {
		cancel()
		writeEndpointError(w, err)
		metrics.RecordRequest("reviews", "pool_error", time.Since(start))
		return
	}

	firstBatch, firstBatchURL, err := lease.Worker().ListReviews(ctx, placeURL, geo)
	lease.Release()
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("url", security.RedactURL(placeURL)).Msg("list reviews failed")
		writeEndpointError(w, err)
		metrics.RecordRequest("reviews", "error", time.Since(start))
		metrics.RecordScrapeOutcome("reviews", "error")
		return
	}
	metrics.RecordReviewBatch("worker", len(firstBatch.Reviews))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	bw := bufio.NewWriter(w)
	writeBatchLine(bw, firstBatch.Reviews)
	bw.Flush()
	if flusher != nil {
		flusher.Flush()
	}

	s, _ := stream.New(h.httpClient, firstBatchURL, firstBatch)
	h.streamRemainingBatches(r.Context(), s, bw, flusher)
	metrics.RecordRequest("reviews", "ok", time.Since(start))
}

// chunk is sent depth-1 between the stream-driving goroutine and the
// response writer, so backpressure on the client connection is the only
// throttle on how fast batches are fetched.
type chunk struct {
	batch []types.Review
	err   error
}

func (h *Handler) streamRemainingBatches(ctx context.Context, s *stream.Stream, bw *bufio.Writer, flusher http.Flusher) {
	ch := make(chan chunk, 1)
	go func() {
		defer close(ch)
		for {
			outcome, batch, err := s.Next(ctx)
			if err != nil {
				ch <- chunk{err: err}
				return
			}
			if outcome == stream.Done {
				return
			}
			ch <- chunk{batch: batch.Reviews}
		}
	}()

	for c := range ch {
		if c.err != nil {
			writeErrorLine(bw, c.err)
			bw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
			metrics.RecordScrapeOutcome("reviews", "error")
			return
		}
		writeBatchLine(bw, c.batch)
		bw.Flush()
		if flusher != nil {
			flusher.Flush()
		}
		metrics.RecordReviewBatch("continuation", len(c.batch))
	}
	metrics.RecordScrapeOutcome("reviews", "ok")
}

func writeBatchLine(w *bufio.Writer, reviews []types.Review) {
	if reviews == nil {
		reviews = []types.Review{}
	}
	buf := getResponseBuffer()
	defer putResponseBuffer(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(reviews); err != nil {
		writeErrorLine(w, err)
		return
	}
	w.Write(buf.Bytes())
}

func writeErrorLine(w *bufio.Writer, err error) {
	data, encErr := json.Marshal(map[string]string{"error": err.Error()})
	if encErr != nil {
		return
	}
	w.Write(data)
	w.WriteString("\n")
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if h.locator == nil {
		_ = json.NewEncoder(w).Encode(nil)
		return
	}
	loc, ok := h.locator.LookupForRequest(r, r.RemoteAddr)
	if !ok {
		_ = json.NewEncoder(w).Encode(nil)
		return
	}
	_ = json.NewEncoder(w).Encode([]float64{loc.Latitude, loc.Longitude})
}

// healthResponse reports pool and selector state for monitoring.
type healthResponse struct {
	Status       string `json:"status"`
	PoolAcquired int64  `json:"pool_acquired_total"`
	PoolReleased int64  `json:"pool_released_total"`
	ReloadCount  int64  `json:"selectors_reload_count"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	acquired, released := h.pool.Stats()
	resp := healthResponse{
		Status:       "ok",
		PoolAcquired: acquired,
		PoolReleased: released,
	}
	if h.selectorsManager != nil {
		resp.ReloadCount = h.selectorsManager.Stats().ReloadCount
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := assets.RenderIndexPage(h.cfg.PoolSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to render index page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
