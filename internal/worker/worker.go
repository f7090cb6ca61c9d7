// Package worker implements the Worker contract: a single browser session
// that exposes scrape operations appearing synchronous to the caller while
// internally driving a real page.
package worker

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/unixpickle/mapscrape/internal/browser"
	"github.com/unixpickle/mapscrape/internal/scrape"
	"github.com/unixpickle/mapscrape/internal/selectors"
	"github.com/unixpickle/mapscrape/internal/types"
	"github.com/unixpickle/mapscrape/pkg/version"
)

// Worker owns one browser session. Its methods must be invoked serially by
// a single caller; concurrent use is prevented by the pool that leases it
// out.
type Worker struct {
	b    *rod.Browser
	page *rod.Page
	sel  func() *selectors.MapSelectors
}

// Config configures how a Worker launches its browser.
type Config struct {
	DriverEndpoint string // CDP control URL of an already-running browser; empty to launch locally
	BrowserPath    string // overrides the Chrome/Chromium executable; ignored if DriverEndpoint is set
	Headless       bool
}

// New launches a browser session with a fixed 1920x1080 viewport and
// returns a ready Worker. sel supplies the current site selectors on every
// call so a Worker always uses the freshest hot-reloaded configuration.
func New(ctx context.Context, cfg Config, sel func() *selectors.MapSelectors) (*Worker, error) {
	b, err := browser.Launch(ctx, browser.Options{
		ControlURL: cfg.DriverEndpoint,
		BinPath:    cfg.BrowserPath,
		Headless:   cfg.Headless,
	})
	if err != nil {
		return nil, types.NewDriverError("launch", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		return nil, types.NewDriverError("new_page", err)
	}

	// go-rod/stealth covers the common detection surface; ApplyStealthToPage
	// layers a handful of patches (WebGL vendor, toString leaks) it misses.
	if err := browser.ApplyStealthToPage(page); err != nil {
		_ = b.Close()
		return nil, types.NewDriverError("apply_stealth", err)
	}

	if err := browser.SetUserAgent(page, version.UserAgent); err != nil {
		_ = b.Close()
		return nil, types.NewDriverError("set_user_agent", err)
	}

	if err := browser.SetViewport(page, 1920, 1080); err != nil {
		_ = b.Close()
		return nil, types.NewDriverError("set_viewport", err)
	}

	log.Debug().Msg("worker browser session ready")
	return &Worker{b: b, page: page, sel: sel}, nil
}

// Search overrides geolocation, navigates to the mapping site's root page
// pinned to geo, enters query, submits it, and classifies the outcome.
func (w *Worker) Search(ctx context.Context, query string, geo types.GeoLocation) (types.SearchResult, error) {
	return scrape.Search(ctx, w.page, w.sel(), query, geo)
}

// ListReviews navigates to placeURL and extracts the first review batch,
// returning it together with the URL that produced it. The caller passes
// both into stream.New to build a ReviewStream that can fetch later pages
// without holding this Worker.
func (w *Worker) ListReviews(ctx context.Context, placeURL string, geo types.GeoLocation) (types.ReviewBatch, string, error) {
	firstBatch, firstBatchURL, err := scrape.ListReviews(ctx, w.page, w.sel(), placeURL, geo)
	if err != nil {
		return types.ReviewBatch{}, "", err
	}
	return firstBatch, firstBatchURL, nil
}

// Close releases the browser session. It is safe to call once.
func (w *Worker) Close() error {
	if err := w.b.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
