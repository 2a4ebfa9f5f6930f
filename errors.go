package imgapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an object does not exist
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream is returned when a purge or transformation backend fails
	ErrUpstream = errors.New("upstream error")
)

// Validation failures. All of them match ErrInvalidInput with errors.Is.
var (
	ErrInvalidPath     = fmt.Errorf("%w: invalid path", ErrInvalidInput)
	ErrInvalidURL      = fmt.Errorf("%w: invalid url", ErrInvalidInput)
	ErrInvalidEncoding = fmt.Errorf("%w: invalid base64 content", ErrInvalidInput)
	ErrMissingField    = fmt.Errorf("%w: missing field", ErrInvalidInput)
)

// UpstreamError describes a failed call to a third-party API. Detail holds
// the upstream error payload, if any, so it can be relayed to admin callers.
type UpstreamError struct {
	Op         string
	StatusCode int
	Detail     json.RawMessage
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case len(e.Detail) > 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

// Is makes every UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
