package handlers

import (
	"context"
	"io"

	"github.com/unixpickle/mapscrape/internal/types"
)

// Scraper is the subset of *worker.Worker the HTTP layer depends on. It
// exists so handlers can be unit tested against a fake implementation
// without driving a real browser.
type Scraper interface {
	io.Closer
	Search(ctx context.Context, query string, geo types.GeoLocation) (types.SearchResult, error)
	ListReviews(ctx context.Context, placeURL string, geo types.GeoLocation) (types.ReviewBatch, string, error)
}
