// Package types provides shared types, interfaces, and errors for the application.
package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for consistent error handling across the application.
// These can be checked with errors.Is() for type-safe error handling.
var (
	// Pool errors.
	ErrPoolClosed  = errors.New("worker pool is closed")
	ErrPoolTimeout = errors.New("timeout waiting for a worker from the pool")

	// Driver errors: the browser session itself failed or disconnected.
	ErrDriverLost = errors.New("browser driver connection lost")

	// StaleReference: a DOM handle referred to an element that no longer
	// exists, almost always because the page navigated out from under it.
	ErrStaleReference = errors.New("stale element reference")

	// Request errors.
	ErrURLRequired   = errors.New("url parameter is required")
	ErrInvalidURL    = errors.New("url parameter is not a valid http(s) url")
	ErrMissingParam  = errors.New("required query parameter is missing")
	ErrInvalidParam  = errors.New("query parameter could not be parsed")
	ErrContextCanceled = errors.New("operation canceled")
)

// DriverError wraps a failure that originated from the browser driver
// (navigation failure, disconnected CDP session, crashed renderer).
type DriverError struct {
	Op  string // the operation being attempted, e.g. "navigate", "eval"
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error during %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// NewDriverError wraps err as a DriverError for operation op.
func NewDriverError(op string, err error) *DriverError {
	return &DriverError{Op: op, Err: err}
}

// ParseError is a recoverable failure while picking apart a review payload:
// the overall structure of the document is intact, but one record was
// shaped unexpectedly and should be skipped rather than aborting the whole
// batch.
type ParseError struct {
	Path string // breadcrumb, e.g. "reviews[3].author"
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError reports a recoverable parse failure at path.
func NewParseError(path string, err error) *ParseError {
	return &ParseError{Path: path, Err: err}
}

// FatalParseError is an unrecoverable failure while picking apart a review
// payload: the document's overall shape no longer matches what the parser
// expects (the site changed its wire format), so no further record in the
// batch can be trusted.
type FatalParseError struct {
	Path string
	Err  error
}

func (e *FatalParseError) Error() string {
	return fmt.Sprintf("fatal parse error at %s: %v", e.Path, e.Err)
}

func (e *FatalParseError) Unwrap() error { return e.Err }

// NewFatalParseError reports an unrecoverable parse failure at path.
func NewFatalParseError(path string, err error) *FatalParseError {
	return &FatalParseError{Path: path, Err: err}
}

// TimeoutError reports that a retry loop exhausted its deadline before the
// page settled into a recognizable state.
type TimeoutError struct {
	Op       string
	Deadline time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s: %v", e.Op, e.Deadline, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NewTimeoutError reports a retry-loop deadline exceeded while performing op.
func NewTimeoutError(op string, deadline time.Duration, err error) *TimeoutError {
	return &TimeoutError{Op: op, Deadline: deadline, Err: err}
}

// QueryError reports a malformed HTTP query parameter.
type QueryError struct {
	Param string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query parameter %q: %v", e.Param, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError reports that param could not be parsed.
func NewQueryError(param string, err error) *QueryError {
	return &QueryError{Param: param, Err: err}
}
