package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios. Messages are user-visible and
// must stay specific enough to distinguish "session expired" from "you
// lack permission" from "already resolved".
var (
	ErrSessionExpired     = New("SESSION_EXPIRED", http.StatusUnauthorized, "your session has expired, please sign in again")
	ErrProfileMissing     = New("PROFILE_MISSING", http.StatusConflict, "your user profile could not be found, contact the administrator")
	ErrBlocked            = New("ACCOUNT_BLOCKED", http.StatusForbidden, "your account is blocked, contact the administrator")
	ErrPendingApproval    = New("PENDING_APPROVAL", http.StatusForbidden, "your account is awaiting administrator approval")
	ErrInvalidReason      = New("INVALID_REASON", http.StatusBadRequest, "unknown leave reason")
	ErrRateLimited        = New("RATE_LIMITED", http.StatusTooManyRequests, "too many actions, wait a minute and try again")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInvalidOTP         = New("INVALID_OTP", http.StatusUnauthorized, "the code is incorrect or has expired")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "you lack permission to perform this action")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrAlreadyResolved    = New("ALREADY_RESOLVED", http.StatusConflict, "this request was already resolved")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
