package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure so the caller can decide whether the
// request or the infrastructure was at fault.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindStorage       Kind = "storage"
)

// Error is a categorized ledger failure. Message is safe to show to users;
// Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the category of err. Uncategorized failures count as
// storage errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func errValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func errAuthorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func errConflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func errStorage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}
