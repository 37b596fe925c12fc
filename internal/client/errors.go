package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

// ErrHandshake is returned by New when the server rejects the AUTH token.
var ErrHandshake = errors.New("client: handshake failed")

// RemoteError is a failure reported by the server.
type RemoteError struct {
	Kind    domain.ErrorKind
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches *domain.ActorError targets of the same kind, so that
// errors.Is(err, domain.ErrNotFound) works on remote failures.
func (e *RemoteError) Is(target error) bool {
	switch t := target.(type) {
	case *RemoteError:
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	case *domain.ActorError:
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// remoteErrorOf converts a failure envelope.
func remoteErrorOf(res domain.ActorResult) *RemoteError {
	return &RemoteError{Kind: res.ErrorType, Message: res.Error}
}

// serverErrorResult classifies a RESP error reply sent by the connection
// layer rather than by an actor.
func serverErrorResult(msg string) domain.ActorResult {
	kind := domain.KindInternal
	switch {
	case strings.HasPrefix(msg, "NOAUTH"),
		strings.HasPrefix(msg, "ERR handshake rejected"):
		kind = domain.KindPermission
	case strings.HasPrefix(msg, "ERR unknown command"):
		kind = domain.KindBadRequest
	}
	return domain.ActorResult{Success: false, Error: msg, ErrorType: kind}
}
