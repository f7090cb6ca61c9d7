// Package scrape drives a browser page through the site-specific steps
// needed to answer a place search or extract review payloads: DOM-shape
// classification under a retry loop, a client-side XHR interceptor, and the
// nested-array review payload format.
package scrape

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/unixpickle/mapscrape/internal/selectors"
	"github.com/unixpickle/mapscrape/internal/types"
)

// SetGeolocation overrides the page's geolocation via the dev-tools
// extension, matching the CDP Emulation.setGeolocationOverride body shape.
func SetGeolocation(page *rod.Page, geo types.GeoLocation) error {
	err := proto.EmulationSetGeolocationOverride{
		Latitude:  &geo.Latitude,
		Longitude: &geo.Longitude,
		Accuracy:  &geo.Accuracy,
	}.Call(page)
	if err != nil {
		return types.NewDriverError("set_geolocation", err)
	}
	return nil
}

// ClearCookies removes every cookie from the page's browser context.
func ClearCookies(page *rod.Page) error {
	if err := proto.NetworkClearBrowserCookies{}.Call(page); err != nil {
		return types.NewDriverError("clear_cookies", err)
	}
	return nil
}

// Search drives the mapping site's root page pinned to geo, enters query
// into the search box, submits it, and classifies the outcome under the
// standard retry loop.
func Search(ctx context.Context, page *rod.Page, sel *selectors.MapSelectors, query string, geo types.GeoLocation) (types.SearchResult, error) {
	if err := SetGeolocation(page, geo); err != nil {
		return types.SearchResult{}, err
	}
	if err := ClearCookies(page); err != nil {
		return types.SearchResult{}, err
	}

	rootURL := fmt.Sprintf(sel.RootURLTemplate, geo.Latitude, geo.Longitude, 15)
	if err := page.Context(ctx).Navigate(rootURL); err != nil {
		return types.SearchResult{}, types.NewDriverError("navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return types.SearchResult{}, types.NewDriverError("wait_load", err)
	}

	searchInput, err := page.Element(fmt.Sprintf(`input[name=%q]`, sel.SearchInputName))
	if err != nil {
		return types.SearchResult{}, types.NewDriverError("find_search_input", err)
	}
	if err := searchInput.Input(query); err != nil {
		return types.SearchResult{}, types.NewDriverError("enter_query", err)
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return types.SearchResult{}, types.NewDriverError("submit_query", err)
	}

	return retry(ctx, DefaultPollInterval, DefaultDeadline, "search", func(ctx context.Context) (types.SearchResult, error) {
		return classify(ctx, page, sel)
	})
}

// ListReviews navigates to placeURL, installs the review interceptor,
// activates the "more reviews" control, and extracts the first intercepted
// payload. It returns the first batch together with the URL that produced
// it, so the caller can build a ReviewStream without retaining the page.
func ListReviews(ctx context.Context, page *rod.Page, sel *selectors.MapSelectors, placeURL string, geo types.GeoLocation) (types.ReviewBatch, string, error) {
	if err := SetGeolocation(page, geo); err != nil {
		return types.ReviewBatch{}, "", err
	}

	// Navigate to a neutral page first to drop any interceptor installed
	// by a previous lessee of this worker.
	if err := page.Context(ctx).Navigate("about:blank"); err != nil {
		return types.ReviewBatch{}, "", types.NewDriverError("reset_navigate", err)
	}

	if err := installInterceptor(page, sel); err != nil {
		return types.ReviewBatch{}, "", err
	}

	if err := page.Context(ctx).Navigate(placeURL); err != nil {
		return types.ReviewBatch{}, "", types.NewDriverError("navigate_place", err)
	}
	if err := page.WaitLoad(); err != nil {
		return types.ReviewBatch{}, "", types.NewDriverError("wait_load", err)
	}

	_, err := retry(ctx, DefaultPollInterval, DefaultDeadline, "activate_more_reviews", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, activateMoreReviews(page, sel)
	})
	if err != nil {
		return types.ReviewBatch{}, "", err
	}

	intercepted, err := retry(ctx, DefaultPollInterval, DefaultDeadline, "intercept_payload",
		func(ctx context.Context) (interceptedResult, error) {
			u, b, err := interceptedPayload(ctx, page)
			return interceptedResult{url: u, body: b}, err
		})
	if err != nil {
		return types.ReviewBatch{}, "", err
	}

	batch, err := parsePayload(intercepted.body)
	if err != nil {
		return types.ReviewBatch{}, "", err
	}
	return batch, intercepted.url, nil
}

type interceptedResult struct {
	url  string
	body string
}
