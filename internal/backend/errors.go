package backend

import (
	"errors"
	"fmt"
)

// Transport-level sentinel errors. These represent calls that never produced
// an HTTP response; anything the service actually answered becomes *APIError.
var (
	// ErrTimeout indicates the request exceeded the client deadline.
	ErrTimeout = errors.New("backend timeout")
	// ErrNoResponse indicates the request could not reach the service at all
	// (connection refused, DNS failure, reset mid-flight).
	ErrNoResponse = errors.New("no response from backend")
)

// APIError carries the HTTP status and the service's free-text message
// verbatim. The message wording is the only signal the service provides for
// disambiguating failure causes, so it must reach the classifier untouched.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}
