package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure for callers on the other side of the wire.
// The set is closed: anything that is not one of the named kinds is Internal.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "NotFound"
	KindBadRequest ErrorKind = "BadRequest"
	KindPermission ErrorKind = "PermissionError"
	KindInternal   ErrorKind = "Internal"
)

// ParseErrorKind converts a wire string into an ErrorKind.
// Unknown values map to KindInternal.
func ParseErrorKind(s string) ErrorKind {
	switch ErrorKind(s) {
	case KindNotFound, KindBadRequest, KindPermission:
		return ErrorKind(s)
	default:
		return KindInternal
	}
}

// HTTPStatus maps an ErrorKind to the status code used by the HTTP gateway.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ActorError is a classified error raised by the registry, the invocation
// runtime, the handshake or an actor method body.
type ActorError struct {
	Kind    ErrorKind // Classification sent over the wire
	Message string    // Human-readable message sent over the wire
	Details string    // Optional additional details (server-side only)
	Cause   error     // Underlying error (if any, server-side only)
}

// Error implements the error interface.
func (e *ActorError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *ActorError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind. A target with a message only matches
// errors carrying the same message.
func (e *ActorError) Is(target error) bool {
	t, ok := target.(*ActorError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// NewActorError creates a new ActorError with the given kind and message.
func NewActorError(kind ErrorKind, message string) *ActorError {
	return &ActorError{
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *ActorError) WithDetails(details string) *ActorError {
	return &ActorError{
		Kind:    e.Kind,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *ActorError) WithCause(cause error) *ActorError {
	return &ActorError{
		Kind:    e.Kind,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// NotFoundf creates a NotFound error.
func NotFoundf(format string, args ...any) *ActorError {
	return NewActorError(KindNotFound, fmt.Sprintf(format, args...))
}

// BadRequestf creates a BadRequest error.
func BadRequestf(format string, args ...any) *ActorError {
	return NewActorError(KindBadRequest, fmt.Sprintf(format, args...))
}

// PermissionDeniedf creates a PermissionError error.
func PermissionDeniedf(format string, args ...any) *ActorError {
	return NewActorError(KindPermission, fmt.Sprintf(format, args...))
}

// Internalf creates an Internal error.
func Internalf(format string, args ...any) *ActorError {
	return NewActorError(KindInternal, fmt.Sprintf(format, args...))
}

// KindOf classifies any error. Unclassified errors are Internal.
func KindOf(err error) ErrorKind {
	var ae *ActorError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf returns the message that may be sent to a remote caller.
func MessageOf(err error) string {
	var ae *ActorError
	if errors.As(err, &ae) {
		return ae.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCallTimeout.Message
	}
	return err.Error()
}

// ============================================================================
// Kind sentinels, for errors.Is(err, domain.ErrNotFound) style checks.
// ============================================================================

var (
	ErrNotFound   = &ActorError{Kind: KindNotFound}
	ErrBadRequest = &ActorError{Kind: KindBadRequest}
	ErrPermission = &ActorError{Kind: KindPermission}
	ErrInternal   = &ActorError{Kind: KindInternal}
)

// ============================================================================
// Registry and runtime errors
// ============================================================================

var (
	// ErrCallTimeout indicates an actor method exceeded the per-call timeout.
	ErrCallTimeout = NewActorError(KindInternal, "call timed out")

	// ErrInvalidPayload indicates the call payload is not a valid (args, kwargs) pair.
	ErrInvalidPayload = NewActorError(KindBadRequest, "invalid call payload")

	// ErrProtectedActor indicates an attempt to remove or replace a built-in actor.
	ErrProtectedActor = NewActorError(KindPermission, "built-in actor cannot be modified")
)

// ============================================================================
// Handshake errors
// ============================================================================

var (
	// ErrAuthRequired indicates a command was sent before a successful AUTH.
	ErrAuthRequired = NewActorError(KindPermission, "authentication required")

	// ErrHandshakeRejected indicates the AUTH token failed verification.
	ErrHandshakeRejected = NewActorError(KindPermission, "handshake rejected")

	// ErrStaleToken indicates the signed timestamp is outside the accepted window.
	ErrStaleToken = NewActorError(KindPermission, "auth token expired")

	// ErrUnknownPeer indicates the directory has no public key for the peer.
	ErrUnknownPeer = NewActorError(KindPermission, "unknown peer")

	// ErrMalformedToken indicates the AUTH payload could not be decoded.
	ErrMalformedToken = NewActorError(KindBadRequest, "malformed auth token")
)

// ActorNotLoaded returns the failure for a call to an unregistered actor.
func ActorNotLoaded(name string) *ActorError {
	return NotFoundf("actor %s isn't loaded", name)
}

// MethodNotFound returns the failure for a call to an unknown method.
func MethodNotFound(actor, method string) *ActorError {
	return NotFoundf("actor %s has no method %s", actor, method)
}
