// Package apperr defines the closed set of failure kinds surfaced by the
// pricing and order core. Transport layers map kinds to their own status
// codes; the core never deals in HTTP statuses.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a failure.
type Kind uint8

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota
	// KindNotFound means a referenced record does not exist.
	KindNotFound
	// KindConflict means the write would violate a uniqueness rule.
	KindConflict
	// KindInvalidState means a referenced record exists but cannot be used
	// in this context (inactive price list, unpublished product).
	KindInvalidState
	// KindUnavailable means the backing store could not be reached or
	// failed mid-operation.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Sentinel values of *Error are compared by
// identity with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Unavailable wraps a storage failure.
func Unavailable(err error, msg string) error {
	return Wrap(err, KindUnavailable, msg)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
