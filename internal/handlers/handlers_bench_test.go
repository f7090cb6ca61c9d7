package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/unixpickle/mapscrape/internal/types"
)

// BenchmarkWriteBatchLine measures NDJSON line encoding via the pooled
// response buffer, the hot path for every review batch streamed to a
// client.
func BenchmarkWriteBatchLine(b *testing.B) {
	reviews := make([]types.Review, 20)
	for i := range reviews {
		reviews[i] = types.Review{Timestamp: float64(i), Rating: 5, Author: "A", Text: "Great place"}
	}

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		writeBatchLine(bw, reviews)
		bw.Flush()
	}
}

// BenchmarkJSONBufferPool measures sync.Pool allocation performance for the
// request-side decode buffer.
func BenchmarkJSONBufferPool(b *testing.B) {
	b.Run("WithPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := getBuffer()
			buf.WriteString("query=coffee&latitude=37.7")
			putBuffer(buf)
		}
	})

	b.Run("WithoutPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := bytes.NewBuffer(make([]byte, 0, 4096))
			buf.WriteString("query=coffee&latitude=37.7")
		}
	})
}

// BenchmarkResponseBufferPool measures sync.Pool allocation performance for
// the response-side encode buffer.
func BenchmarkResponseBufferPool(b *testing.B) {
	b.Run("WithPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := getResponseBuffer()
			buf.WriteString(`[{"timestamp":1,"rating":5,"author":"A","text":"Great"}]`)
			putResponseBuffer(buf)
		}
	})

	b.Run("WithoutPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := bytes.NewBuffer(make([]byte, 0, 8192))
			buf.WriteString(`[{"timestamp":1,"rating":5,"author":"A","text":"Great"}]`)
		}
	})
}

// BenchmarkGeoFromQuery measures query-parameter parsing overhead, which
// runs on every /api/search and /api/reviews request.
func BenchmarkGeoFromQuery(b *testing.B) {
	values := url.Values{
		"latitude":  {"37.7749"},
		"longitude": {"-122.4194"},
		"accuracy":  {"15.5"},
	}
	q := newQuery(values)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := geoFromQuery(q); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkHandleSearch benchmarks the full search handler against a fake
// scraper, so no browser work is measured.
func BenchmarkHandleSearch(b *testing.B) {
	result := types.SearchResult{
		Kind:      types.Single,
		Locations: []types.LocationInfo{{Name: "Cafe Aroma", URL: "https://maps.example/place/1"}},
	}
	h := testHandler(b, &fakeScraper{searchResult: result})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/api/search?query=coffee&latitude=1&longitude=2&accuracy=3", nil)
		w := httptest.NewRecorder()
		h.handleSearch(w, req)
	}
}

// BenchmarkResponseEncode measures search-result JSON encoding in
// isolation.
func BenchmarkResponseEncode(b *testing.B) {
	result := types.SearchResult{
		Kind: types.Multiple,
		Locations: []types.LocationInfo{
			{Name: "Cafe Aroma", URL: "https://maps.example/place/1", Tags: []string{"cafe", "coffee"}},
			{Name: "Cafe Luna", URL: "https://maps.example/place/2", Tags: []string{"cafe"}},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := json.Marshal(result); err != nil {
			b.Fatal(err)
		}
	}
}
