package handlers

import (
	"net/url"
	"strconv"

	"github.com/unixpickle/mapscrape/internal/types"
)

// query wraps url.Values with typed accessors that report malformed or
// missing parameters as a types.QueryError instead of silently zeroing them.
type query struct {
	values url.Values
}

func newQuery(values url.Values) query {
	return query{values: values}
}

// String returns the named parameter, or a QueryError if absent.
func (q query) String(name string) (string, error) {
	v := q.values.Get(name)
	if v == "" {
		return "", types.NewQueryError(name, types.ErrMissingParam)
	}
	return v, nil
}

// Float64 parses the named parameter as a float64, or a QueryError if
// absent or unparseable.
func (q query) Float64(name string) (float64, error) {
	raw, err := q.String(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewQueryError(name, types.ErrInvalidParam)
	}
	return v, nil
}

// Float64OrDefault parses the named parameter as a float64, falling back to
// def when the parameter is absent. A present-but-malformed value is still
// an error.
func (q query) Float64OrDefault(name string, def float64) (float64, error) {
	if q.values.Get(name) == "" {
		return def, nil
	}
	return q.Float64(name)
}
