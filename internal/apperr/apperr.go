// Package apperr defines the application error taxonomy shared by the service
// and API layers.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	// CodeNotFound means a referenced entity does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeValidation means the input or entity state rejects the operation.
	CodeValidation Code = "VALIDATION"
	// CodeAuthorization means the requesting user may not act on the entity.
	CodeAuthorization Code = "AUTHORIZATION"
	// CodeConflict means the operation collides with existing state.
	CodeConflict Code = "CONFLICT"
	// CodeInternal covers everything else.
	CodeInternal Code = "INTERNAL"
)

// Error is an application error with a classification code.
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

// NotFound creates a NotFound error for the named entity.
func NotFound(entity string) *Error {
	return &Error{Code: CodeNotFound, Message: entity + " not found"}
}

// Validation creates a Validation error with the given message.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// Authorization creates an Authorization error with the given message.
func Authorization(message string) *Error {
	return &Error{Code: CodeAuthorization, Message: message}
}

// Conflict creates a Conflict error with the given message.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Internal wraps err as an Internal error.
func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the classification of err, or CodeInternal for plain errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
