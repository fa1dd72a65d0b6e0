package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed marks any failed feed fetch: transport error, non-2xx status or bad body.
	ErrFetchFailed = errors.New("feed fetch failed")
	// ErrParseFailed marks a response body that is not a valid feed payload.
	// errors.Is(ErrParseFailed, ErrFetchFailed) holds.
	ErrParseFailed = fmt.Errorf("%w: invalid response body", ErrFetchFailed)
)

// FetchError describes one failed fetch.
type FetchError struct {
	URI   string
	Err   error
	Parse bool
}

func (e *FetchError) Error() string {
	if e.Parse {
		return fmt.Sprintf("parse %s: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *FetchError) Unwrap() []error {
	kind := ErrFetchFailed
	if e.Parse {
		kind = ErrParseFailed
	}
	return []error{kind, e.Err}
}
