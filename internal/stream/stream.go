// Package stream implements the lazy review stream: an iterator over review
// batches that owns no browser resource past the first batch. Subsequent
// pages are fetched with a plain HTTP GET against the site's continuation
// URL, so a long-lived stream never holds a worker lease.
package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unixpickle/mapscrape/internal/scrape"
	"github.com/unixpickle/mapscrape/internal/security"
	"github.com/unixpickle/mapscrape/internal/types"
)

// DefaultFetchTimeout bounds a single continuation-page HTTP round trip.
const DefaultFetchTimeout = 15 * time.Second

// Outcome is the result of a single call to Stream.Next.
type Outcome int

const (
	// More indicates Batch holds a non-terminal review batch.
	More Outcome = iota
	// Done indicates the stream is exhausted; Batch is the zero value.
	Done
)

// Stream lazily yields review batches for one place. The first batch is
// supplied at construction time (it was already extracted by a worker while
// driving the page); every later batch is fetched over plain HTTP using the
// continuation URL rewritten from the previous batch's token.
// validateURL is swapped out in tests to avoid exercising real DNS/SSRF
// checks against loopback test servers.
type validateURLFunc func(ctx context.Context, rawURL string) (string, error)

func defaultValidateURL(ctx context.Context, rawURL string) (string, error) {
	resolved, _, err := security.ValidateAndResolveURLWithContext(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

type Stream struct {
	client      *http.Client
	validateURL validateURLFunc
	templateURL string
	nextURL     string
	exhausted   bool
}

// New builds a Stream primed with the first batch already obtained from a
// worker. templateURL is the URL that produced firstBatch; it supplies the
// shape subsequent continuation URLs are rewritten from.
func New(client *http.Client, templateURL string, firstBatch types.ReviewBatch) (*Stream, types.ReviewBatch) {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	s := &Stream{client: client, validateURL: defaultValidateURL, templateURL: templateURL}
	if firstBatch.Continuation == "" {
		s.exhausted = true
		return s, firstBatch
	}
	nextURL, err := scrape.RewriteContinuationURL(templateURL, firstBatch.Continuation)
	if err != nil {
		s.exhausted = true
		return s, firstBatch
	}
	s.nextURL = nextURL
	return s, firstBatch
}

// Next fetches and parses the following review batch. Once the stream is
// exhausted, every subsequent call returns (Done, zero value, nil).
func (s *Stream) Next(ctx context.Context) (Outcome, types.ReviewBatch, error) {
	if s.exhausted {
		return Done, types.ReviewBatch{}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, DefaultFetchTimeout)
	defer cancel()

	resolvedURL, err := s.validateURL(fetchCtx, s.nextURL)
	if err != nil {
		s.exhausted = true
		return Done, types.ReviewBatch{}, types.NewDriverError("validate_continuation_url", err)
	}

	body, err := fetchBody(fetchCtx, s.client, resolvedURL)
	if err != nil {
		s.exhausted = true
		return Done, types.ReviewBatch{}, err
	}

	batch, err := scrape.ParsePayload(body)
	if err != nil {
		s.exhausted = true
		return Done, types.ReviewBatch{}, err
	}

	if batch.Continuation == "" {
		s.exhausted = true
		return More, batch, nil
	}

	nextURL, err := scrape.RewriteContinuationURL(s.templateURL, batch.Continuation)
	if err != nil {
		s.exhausted = true
		return More, batch, nil
	}
	s.nextURL = nextURL

	log.Debug().Str("url", resolvedURL).Int("reviews", len(batch.Reviews)).Msg("fetched continuation batch")
	return More, batch, nil
}

func fetchBody(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", types.NewDriverError("build_continuation_request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", types.NewDriverError("fetch_continuation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewDriverError("fetch_continuation", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewDriverError("read_continuation_body", err)
	}
	return string(data), nil
}
