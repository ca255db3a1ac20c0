package client

import (
	"errors"
	"fmt"
)

// FetchError reports a failed fetch: a non-200 status, or a transport failure
// (StatusCode 0). Whether it is fatal is decided by the caller.
type FetchError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from a *FetchError anywhere in err's
// chain. Returns 0 when there is none.
func StatusCode(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}
