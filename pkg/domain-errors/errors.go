// Package domainerrors carries coded errors from services to transport.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate them
// into a Code that the HTTP layer maps to a status. The message of a coded error is
// safe to show to callers unless the code is CodeInternal.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnsupported        Code = "unsupported"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"

	// Identifier allocation outcomes.
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeRangeNotProvisioned Code = "range_not_provisioned"
	CodeRangeFull           Code = "range_full"
	CodeRangeExists         Code = "range_exists"
	CodeOrgNotFound         Code = "org_not_found"
)

// Error is a coded error with a caller-safe message and an optional cause.
type Error struct {
	Code    Code
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

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// From returns the outermost coded error in err's chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if de, ok := From(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err's outermost coded error has the given code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}
