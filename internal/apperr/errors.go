// Package apperr defines the error kinds the enrollment and payment flows
// report to their callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalidSignature
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindGateway:
		return "gateway_error"
	default:
		return "internal_error"
	}
}

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

// Retryable reports whether the caller may retry the whole operation.
func (e *Error) Retryable() bool {
	return e.Kind == KindGateway
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error       { return New(KindValidation, msg) }
func NotFound(msg string) *Error         { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error        { return New(KindForbidden, msg) }
func Conflict(msg string) *Error         { return New(KindConflict, msg) }
func InvalidSignature(msg string) *Error { return New(KindInvalidSignature, msg) }

func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
