package domain

import "errors"

var (
	// ErrUnauthenticated indicates no valid principal on the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal is known but lacks the required
	// capability.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the resource or a required sibling is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed request shape, missing required
	// field or out-of-range value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPositionOutOfRange is returned by the position engine when the
	// target position is outside the sibling range. Callers clamp instead of
	// surfacing it.
	ErrPositionOutOfRange = errors.New("position out of range")
	// ErrUnknownEventType indicates an event type absent from the
	// classification tables. Publishing fails closed.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrInvalidTopic indicates a subscription topic name that does not
	// parse into a known topic kind.
	ErrInvalidTopic = errors.New("invalid topic")
	// ErrTransportFailure wraps errors raised by the real-time transport.
	ErrTransportFailure = errors.New("transport failure")
	// ErrDuplicateRequest indicates a replayed idempotency key.
	ErrDuplicateRequest = errors.New("duplicate request")
)
