// Package apperr carries the domain error taxonomy. Every business rule
// violation is raised as an *Error with an explicit Kind; handlers map the
// kind to an HTTP status in exactly one place (HTTPStatus).
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvalidState
	KindInvalidArgument
	KindStockExceeded
	KindInsufficientStock
	KindEmptyCart
	KindConflict
	KindUnauthorized
	KindInternal
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a tagged error with a plain message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors
// report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human-readable message for classified errors and a
// generic one otherwise, so internal details never leak to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal Server Error"
}

// HTTPStatus is the single mapping from error kind to transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindInvalidState, KindInvalidArgument, KindStockExceeded, KindInsufficientStock, KindEmptyCart:
		return 400
	case KindConflict:
		return 409
	case KindUnauthorized:
		return 401
	default:
		return 500
	}
}
