// Package apperr defines the error taxonomy shared by the lifecycle engine
// and the tool facade. Engine operations return kind-tagged errors; the
// facade decodes the kind exactly once at the transport boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and a message for callers.
func Wrap(err error, kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// HasKind reports whether err or anything it wraps carries the given kind.
func HasKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the kind carried by err, or KindInternal when err is not
// kind-tagged.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
