package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure across the teamflow core.
type ErrorCode string

const (
	// ErrNotFound means a referenced id (agent, task, team, context,
	// version, negotiation) does not resolve.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrForbidden means an access-control check failed: insufficient
	// level or an expired grant.
	ErrForbidden ErrorCode = "FORBIDDEN"
	// ErrInvalidState means the operation is not legal in the entity's
	// current state, e.g. resolving a terminal negotiation.
	ErrInvalidState ErrorCode = "INVALID_STATE"
	// ErrUnqualified means no agent met the capability thresholds. It is
	// a soft signal: formation degrades the team to PARTIAL and reports
	// it rather than failing the call.
	ErrUnqualified ErrorCode = "UNQUALIFIED"
)

// Error is a structured error with a code, message, and optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// NotFound builds a NOT_FOUND error for an entity kind and id.
func NotFound(kind, id string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("%s %q not found", kind, id))
}

// Forbidden builds a FORBIDDEN error.
func Forbidden(format string, args ...any) *Error {
	return NewError(ErrForbidden, fmt.Sprintf(format, args...))
}

// InvalidState builds an INVALID_STATE error.
func InvalidState(format string, args ...any) *Error {
	return NewError(ErrInvalidState, fmt.Sprintf(format, args...))
}

// CodeOf extracts the error code from an error chain, or "" if the chain
// carries no *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool { return CodeOf(err) == ErrNotFound }

// IsForbidden reports whether err carries the FORBIDDEN code.
func IsForbidden(err error) bool { return CodeOf(err) == ErrForbidden }

// IsInvalidState reports whether err carries the INVALID_STATE code.
func IsInvalidState(err error) bool { return CodeOf(err) == ErrInvalidState }
