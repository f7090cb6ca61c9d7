package scrape

import (
	"fmt"
	"strconv"

	"github.com/unixpickle/mapscrape/internal/types"
)

// The review payload's schema is pervasively positional and partially
// polymorphic: some slots carry either a string sentinel or a structured
// subtree. These accessors centralise the type checks so callers never
// write a raw type assertion, and each attaches a breadcrumb path for
// diagnostics.

func asArray(v any, path string) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, types.NewFatalParseError(path, fmt.Errorf("expected array, got %T", v))
	}
	return arr, nil
}

func asString(v any, path string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", types.NewFatalParseError(path, fmt.Errorf("expected string, got %T", v))
	}
	return s, nil
}

func asNumber(v any, path string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, types.NewFatalParseError(path, fmt.Errorf("expected number, got unparseable string %q", n))
		}
		return f, nil
	default:
		return 0, types.NewFatalParseError(path, fmt.Errorf("expected number, got %T", v))
	}
}

// index returns arr[i], reporting a breadcrumb through path on out-of-range
// access instead of panicking.
func index(arr []any, i int, path string) (any, error) {
	if i < 0 || i >= len(arr) {
		return nil, types.NewFatalParseError(path, fmt.Errorf("index %d out of range (len %d)", i, len(arr)))
	}
	return arr[i], nil
}

// indexAt is a convenience wrapper combining asArray and index, extending
// path with the index for diagnostics.
func indexAt(v any, i int, path string) (any, error) {
	arr, err := asArray(v, path)
	if err != nil {
		return nil, err
	}
	return index(arr, i, fmt.Sprintf("%s[%d]", path, i))
}
