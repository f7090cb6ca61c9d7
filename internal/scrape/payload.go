package scrape

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/unixpickle/mapscrape/internal/types"
)

// ParsePayload decodes one review-payload response body, as fetched either
// from an intercepted XHR or a direct HTTP follow-up request for a
// continuation page.
func ParsePayload(body string) (types.ReviewBatch, error) {
	return parsePayload(body)
}

// parsePayload decodes one review-payload response body as described by the
// target site's proprietary, pervasively positional schema: the body is
// newline-delimited, and the last non-empty line is a nested JSON array
// whose second element is a continuation token (null or string) and whose
// remaining array-valued elements are sublists of review entries.
func parsePayload(body string) (types.ReviewBatch, error) {
	line, err := lastNonEmptyLine(body)
	if err != nil {
		return types.ReviewBatch{}, err
	}

	var root any
	if err := json.Unmarshal([]byte(line), &root); err != nil {
		return types.ReviewBatch{}, types.NewFatalParseError("R", fmt.Errorf("decode json: %w", err))
	}

	rArr, err := asArray(root, "R")
	if err != nil {
		return types.ReviewBatch{}, err
	}

	continuation, err := parseContinuation(rArr)
	if err != nil {
		return types.ReviewBatch{}, err
	}

	var reviews []types.Review
	for i, elem := range rArr {
		if elem == nil {
			continue
		}
		if _, isStr := elem.(string); isStr {
			continue
		}
		path := fmt.Sprintf("R[%d]", i)
		sublist, err := asArray(elem, path)
		if err != nil {
			return types.ReviewBatch{}, err
		}
		for j := range sublist {
			entryPath := fmt.Sprintf("%s[%d]", path, j)
			r, err := parseReviewEntry(sublist[j], entryPath)
			if err != nil {
				return types.ReviewBatch{}, err
			}
			reviews = append(reviews, r)
		}
	}

	return types.ReviewBatch{Reviews: reviews, Continuation: continuation}, nil
}

func lastNonEmptyLine(body string) (string, error) {
	lines := strings.Split(body, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], nil
		}
	}
	return "", types.NewFatalParseError("body", fmt.Errorf("no non-empty line in payload"))
}

// parseContinuation reads R[1], which is either JSON null (no further page)
// or the opaque continuation token string.
func parseContinuation(rArr []any) (string, error) {
	v, err := index(rArr, 1, "R")
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return asString(v, "R[1]")
}

func parseReviewEntry(e any, path string) (types.Review, error) {
	data, err := indexAt(e, 0, path)
	if err != nil {
		return types.Review{}, err
	}
	dataPath := path + "[0]"

	metadata, err := indexAt(data, 1, dataPath)
	if err != nil {
		return types.Review{}, err
	}
	metadataPath := dataPath + "[1]"

	content, err := indexAt(data, 2, dataPath)
	if err != nil {
		return types.Review{}, err
	}
	contentPath := dataPath + "[2]"

	timestamp, err := parseTimestamp(metadata, metadataPath)
	if err != nil {
		return types.Review{}, err
	}

	author, err := parseAuthor(metadata, metadataPath)
	if err != nil {
		return types.Review{}, err
	}

	rating, err := parseRating(content, contentPath)
	if err != nil {
		return types.Review{}, err
	}

	text := parseText(content, contentPath)

	return types.Review{
		Timestamp: timestamp,
		Author:    author,
		Text:      text,
		Rating:    rating,
	}, nil
}

func parseTimestamp(metadata any, path string) (float64, error) {
	raw, err := indexAt(metadata, 2, path)
	if err != nil {
		return 0, err
	}
	n, err := asNumber(raw, path+"[2]")
	if err != nil {
		return 0, err
	}
	return n / 1_000_000, nil
}

func parseAuthor(metadata any, path string) (string, error) {
	m4, err := indexAt(metadata, 4, path)
	if err != nil {
		return "", err
	}
	m40, err := indexAt(m4, 0, path+"[4]")
	if err != nil {
		return "", err
	}
	m404, err := indexAt(m40, 4, path+"[4][0]")
	if err != nil {
		return "", err
	}
	return asString(m404, path+"[4][0][4]")
}

// parseRating implements the rating rule of the payload schema: a native
// rating at content[0][0] is already on a 1-5 scale; otherwise the review
// came from a cross-posted site on an arbitrary scale recorded at
// content[8], and must be rescaled and clamped into [1.0, 5.0].
func parseRating(content any, path string) (float64, error) {
	contentArr, err := asArray(content, path)
	if err != nil {
		return 0, err
	}

	c0, err := index(contentArr, 0, path)
	if err != nil {
		return 0, err
	}
	if c0 != nil {
		native, err := indexAt(c0, 0, path+"[0]")
		if err != nil {
			return 0, err
		}
		return asNumber(native, path+"[0][0]")
	}

	c8, err := index(contentArr, 8, path)
	if err != nil {
		return 0, err
	}
	divisorRaw, err := indexAt(c8, 2, path+"[8]")
	if err != nil {
		return 0, err
	}
	divisorStr, err := asString(divisorRaw, path+"[8][2]")
	if err != nil {
		return 0, err
	}
	divisor, err := parseDivisor(divisorStr, path+"[8][2]")
	if err != nil {
		return 0, err
	}

	rawValue, err := indexAt(c8, 1, path+"[8]")
	if err != nil {
		return 0, err
	}
	rawNum, err := asNumber(rawValue, path+"[8][1]")
	if err != nil {
		return 0, err
	}

	rating := rawNum * (5.0 / divisor)
	return clamp(rating, 1.0, 5.0), nil
}

// parseDivisor extracts the denominator from the last '/'-delimited token
// of a string like "8/10".
func parseDivisor(s, path string) (float64, error) {
	parts := strings.Split(s, "/")
	last := parts[len(parts)-1]
	f, err := strconv.ParseFloat(strings.TrimSpace(last), 64)
	if err != nil {
		return 0, types.NewFatalParseError(path, fmt.Errorf("parse divisor from %q: %w", s, err))
	}
	return f, nil
}

// parseText implements the optional review-text branch: any failure here
// (type mismatch, missing index, or the structural string sentinel) yields
// an empty string rather than an error, per schema.
func parseText(content any, path string) string {
	contentArr, err := asArray(content, path)
	if err != nil || len(contentArr) == 0 {
		return ""
	}
	last := len(contentArr) - 1
	tc := contentArr[last]

	tc0, err := indexAt(tc, 0, fmt.Sprintf("%s[%d]", path, last))
	if err != nil {
		return ""
	}
	if _, isStr := tc0.(string); isStr {
		return ""
	}
	tc00, err := indexAt(tc0, 0, "")
	if err != nil {
		return ""
	}
	text, ok := tc00.(string)
	if !ok {
		return ""
	}
	return text
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
