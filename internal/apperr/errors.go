// Package apperr defines the error taxonomy shared by the ledger, the games
// and the HTTP adapter.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeValidation         Code = "validation"
	CodeInsufficientFunds  Code = "insufficient_funds"
	CodeInvalidRoundAction Code = "invalid_round_action"
	CodeNoActiveRound      Code = "no_active_round"
	CodeAccountNotFound    Code = "account_not_found"
	CodeRateLimited        Code = "rate_limited"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal"
)

// Error is the domain error type. Two errors are equal under errors.Is when
// their codes match.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with a code that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation is shorthand for New(CodeValidation, message).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Internal reports a broken contract between components.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

var (
	ErrInsufficientFunds  = New(CodeInsufficientFunds, "insufficient balance")
	ErrAccountNotFound    = New(CodeAccountNotFound, "account not found")
	ErrInvalidRoundAction = New(CodeInvalidRoundAction, "invalid round action")
	ErrNoActiveRound      = New(CodeNoActiveRound, "no active round")
	ErrRateLimited        = New(CodeRateLimited, "rate limit exceeded")
)

// CodeOf extracts the code of the first *Error in err's chain. Errors that
// carry no code are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to the status the adapter answers with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeInvalidRoundAction:
		return http.StatusConflict
	case CodeNoActiveRound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
