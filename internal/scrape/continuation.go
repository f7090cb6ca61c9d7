package scrape

import (
	"fmt"
	"strings"

	"github.com/unixpickle/mapscrape/internal/types"
)

// continuationMarker is the URL segment a continuation token replaces.
const continuationMarker = "!2s"

// RewriteContinuationURL substitutes token into url in place of the
// existing continuation segment: it locates the first "!2s", percent-
// encodes '=' as "%3d" within token, and splices the encoded token between
// "!2s" and the next "!" (or end of string).
func RewriteContinuationURL(url, token string) (string, error) {
	start := strings.Index(url, continuationMarker)
	if start == -1 {
		return "", types.NewFatalParseError("continuation_url", fmt.Errorf("%q not found in url %q", continuationMarker, url))
	}

	tailStart := start + len(continuationMarker)
	end := len(url)
	if next := strings.Index(url[tailStart:], "!"); next != -1 {
		end = tailStart + next
	}

	encoded := strings.ReplaceAll(token, "=", "%3d")

	return url[:start] + continuationMarker + encoded + url[end:], nil
}
