// Package apperr carries the error taxonomy used across services. Every
// failure has a stable kind handlers can switch on, plus a human-readable
// message reusable verbatim in API error bodies.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindInvalidArgument
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: err.Error()}
}

// KindOf extracts the kind of err, defaulting to KindUnexpected for errors
// that did not originate in a service.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
