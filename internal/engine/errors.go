package engine

import (
	"errors"
	"fmt"
)

// Kind classifies handler failures. Every kind is surfaced to the client as
// an error envelope; none of them closes the connection.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindConflict
	KindNotFound
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindConflict:
		return "ConflictError"
	case KindNotFound:
		return "NotFoundError"
	case KindProtocol:
		return "ProtocolError"
	default:
		return "InternalError"
	}
}

// Code is the wire form of the kind.
func (k Kind) Code() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindProtocol:
		return "protocol"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	// Message is safe to show to the client.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// ProtocolError builds a KindProtocol error. The router uses it for frames
// that never reach a handler.
func ProtocolError(msg string, err error) *Error {
	return newError(KindProtocol, msg, err)
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
