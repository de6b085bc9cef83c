// Package errors provides the service-wide error taxonomy: string error
// codes for programmatic handling plus human-readable messages for display.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of error in a machine-readable way.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeAmbiguous    ErrorCode = "AMBIGUOUS"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded error. Use the constructors below rather than building
// instances directly.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with a message.
func New(code ErrorCode, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a code and message, preserving the
// cause for errors.Is/As inspection.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports that a named resource does not exist.
func NotFound(resource string, id interface{}) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %v", resource, id)}
}

// Forbidden reports that the acting user may not perform the operation.
func Forbidden(operation string) error {
	return &Error{Code: ErrCodeForbidden, Message: fmt.Sprintf("not allowed to %s", operation)}
}

// InvalidInput reports a bad value for a named field.
func InvalidInput(field, message string) error {
	return &Error{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Code extracts the ErrorCode from an error chain, or ErrCodeInternal if the
// chain carries no coded error.
func Code(err error) ErrorCode {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}
