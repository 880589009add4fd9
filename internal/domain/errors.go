// Package domain provides the shared types of the narration client:
// game phases, settled action results, and canonical client errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a client error by the layer that produced it.
type ErrorKind string

const (
	// ErrorKindFraming indicates a malformed wire frame. Always recovered
	// locally; never settles an action.
	ErrorKindFraming ErrorKind = "framing"

	// ErrorKindDecoding indicates a frame payload that did not match the
	// shape expected for its event name. Recovered locally.
	ErrorKindDecoding ErrorKind = "decoding"

	// ErrorKindTransport indicates a connection-level failure: reset,
	// timeout, or a non-success HTTP status before any terminal frame.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindServer indicates an explicit error event from the server.
	ErrorKindServer ErrorKind = "server"

	// ErrorKindCancelled indicates the action was superseded by a newer
	// one. Never surfaced to the player.
	ErrorKindCancelled ErrorKind = "cancelled"
)

// Sentinel errors returned by the orchestrator for rejected submissions.
var (
	// ErrNoSession is returned when an action is submitted before a game
	// session has been bootstrapped.
	ErrNoSession = errors.New("no active game session")

	// ErrEmptyAction is returned when the action text is empty after
	// trimming.
	ErrEmptyAction = errors.New("action text is empty")
)

// ClientError is the canonical error surfaced by the streaming client.
type ClientError struct {
	// Kind is the category of the error.
	Kind ErrorKind

	// Message is the human-readable description, suitable for display
	// when Kind is transport or server.
	Message string

	// StatusCode is the HTTP status that produced the error, if any.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a client error of the given kind.
func NewClientError(kind ErrorKind, message string) *ClientError {
	return &ClientError{Kind: kind, Message: message}
}

// WithCause attaches an underlying cause to the error.
func (e *ClientError) WithCause(err error) *ClientError {
	e.Err = err
	return e
}

// WithStatusCode records the HTTP status that produced the error.
func (e *ClientError) WithStatusCode(code int) *ClientError {
	e.StatusCode = code
	return e
}

// ErrTransport creates a transport-level failure.
func ErrTransport(message string) *ClientError {
	return NewClientError(ErrorKindTransport, message)
}

// ErrServer creates a server-reported failure.
func ErrServer(message string) *ClientError {
	return NewClientError(ErrorKindServer, message)
}

// ErrCancelled creates a silent cancellation marker.
func ErrCancelled() *ClientError {
	return NewClientError(ErrorKindCancelled, "action superseded")
}

// IsCancelled reports whether err is a silent cancellation that must not
// be surfaced to the player.
func IsCancelled(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind == ErrorKindCancelled
	}
	return false
}
