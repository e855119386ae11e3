package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindAlreadyExists   Kind = "ALREADY_EXISTS"
	KindInvalidState    Kind = "INVALID_STATE"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindIOFailure       Kind = "IO_FAILURE"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrIOFailure       = &Error{Kind: KindIOFailure}
)

// Error is the failure type returned by every repository operation.
type Error struct {
	Kind Kind   `json:"type"`
	Op   string `json:"op,omitempty"`
	ID   string `json:"id,omitempty"`
	Err  error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Op
	if e.ID != "" {
		if msg != "" {
			msg += " "
		}
		msg += e.ID
	}
	if msg != "" {
		msg += ": "
	}
	msg += string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match for any *Error with the same Kind whose Op and ID are
// either equal or unset on the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.ID == "" || t.ID == e.ID)
}

// Code maps the kind to an HTTP status for transport layers.
func (e *Error) Code() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, ID: id}
}

func AlreadyExists(op, id string) *Error {
	return &Error{Kind: KindAlreadyExists, Op: op, ID: id}
}

func InvalidState(op, id string, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Op: op, ID: id, Err: fmt.Errorf(format, args...)}
}

func InvalidArgument(op, id string, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, ID: id, Err: fmt.Errorf(format, args...)}
}

// IOFailure wraps a storage error. An err that already is an *Error is
// returned unchanged so kinds are never rewritten on the way up.
func IOFailure(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindIOFailure, Op: op, ID: id, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As is a shorthand for extracting an *Error from a chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}
