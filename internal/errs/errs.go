// Package errs defines the fatal error kinds this system can die with
// and the wrapping convention used to attribute them to an underlying
// cause.
package errs

import "github.com/pkg/errors"

// Kind is one of the closed set of fatal error categories.
type Kind string

const (
	InputMalformed     Kind = "InputMalformed"
	IoError            Kind = "IoError"
	AllocExhausted     Kind = "AllocExhausted"
	Oversubscribed     Kind = "Oversubscribed"
	InvariantViolation Kind = "InvariantViolation"
	RpcMismatch        Kind = "RpcMismatch"
)

// Error pairs a Kind with the operation that detected it and the
// underlying cause, if any. Any error that reaches a peer's top-level
// dispatch loop is fatal: there is no retry and no partial-progress
// recovery.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Op
	}
	return string(e.Kind) + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a Kind-tagged error for operation op, wrapping cause (if
// non-nil) with github.com/pkg/errors so a stack trace survives up to
// wherever the peer logs the fatal diagnostic.
func New(kind Kind, op string, cause error) *Error {
	if cause != nil {
		cause = errors.Wrap(cause, op)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is an *Error of the given kind, walking wrapped
// causes via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
