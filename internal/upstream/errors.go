package upstream

import (
	"errors"
	"fmt"
)

// HTTPError is a non-2xx response from the analytics API.
type HTTPError struct {
	What       string
	StatusCode int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Failed to fetch %s: %d %s", e.What, e.StatusCode, e.StatusText)
}

// NotFound reports a 404.
func (e *HTTPError) NotFound() bool {
	return e.StatusCode == 404
}

// Temporary reports a server-side failure that a retry may clear.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500
}

// DecodeError is a response body that does not have the expected shape.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Failed to decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.NotFound()
}
