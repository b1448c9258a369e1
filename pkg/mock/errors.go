package mock

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportRequired is returned by Start when the interceptor has no transport.
	ErrTransportRequired = errors.New("mock: transport is required")
	// ErrAlreadyStarted is returned when interception is started twice.
	ErrAlreadyStarted = errors.New("mock: interception already started")
	// ErrNotStarted is returned by Stop when interception is not running.
	ErrNotStarted = errors.New("mock: interception not started")
	// ErrSettled is returned by an exchange that was already answered.
	ErrSettled = errors.New("mock: request already settled")
)

// SerializationError reports a response body that could not be encoded.
type SerializationError struct {
	Request string
	Err     error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize response body for %s: %v", e.Request, e.Err)
}

// Unwrap returns the underlying encoder error.
func (e *SerializationError) Unwrap() error { return e.Err }

// ReplyError reports a transport failure while answering a request.
type ReplyError struct {
	Request string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *ReplyError) Error() string {
	return fmt.Sprintf("reply %d to %s: %v", e.Status, e.Request, e.Err)
}

// Unwrap returns the transport error.
func (e *ReplyError) Unwrap() error { return e.Err }
