package errors

import (
	"errors"
	"fmt"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

var (
	// ErrMalformedResponse marks a backend body missing the fields we need. Logged, never fatal.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotFoundYet means the artifact named by a response is not in the catalog yet.
	ErrNotFoundYet = errors.New("artifact not found yet")
	// ErrDuplicateResponse is reported for a request_id that was already processed.
	ErrDuplicateResponse = errors.New("duplicate response")
)

// TransportError is a network failure or a non-2xx status from the backend.
// StatusCode is 0 when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
