// Package errors defines the structured error types returned across sessionguard.
// AppError values carry the HTTP status the transport layer should answer with.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	ErrCodeInternal           = "internal_error"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeInvalidConfig      = "invalid_config"
	ErrCodeBadCredentials     = "bad_credentials"
)

// AppError represents a structured application error
type AppError struct {
	Code        string
	Message     string
	Description string
	HTTPStatus  int
	Details     map[string]string
	cause       error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on the error code so sentinel comparisons survive WithError copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithError returns a copy of the error wrapping cause.
func (e *AppError) WithError(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithDetail returns a copy of the error with an extra detail entry.
func (e *AppError) WithDetail(key, value string) *AppError {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New creates an internal AppError with the given message.
func New(message string) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewError creates an AppError with explicit code and status.
func NewError(code string, httpStatus int, message, description string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Description: description,
		HTTPStatus:  httpStatus,
	}
}

// ================================================================================
// Sentinel errors
// ================================================================================

var (
	ErrInvalidRequest = NewError(ErrCodeInvalidRequest, http.StatusBadRequest,
		"invalid request", "The request is missing a required parameter or is otherwise malformed.")

	ErrUnauthorized = NewError(ErrCodeUnauthorized, http.StatusUnauthorized,
		"unauthorized", "Authentication is required to access this resource.")

	ErrForbidden = NewError(ErrCodeForbidden, http.StatusForbidden,
		"forbidden", "The authenticated principal may not perform this operation.")

	ErrNotFound = NewError(ErrCodeNotFound, http.StatusNotFound,
		"not found", "The requested resource was not found.")

	ErrInternal = NewError(ErrCodeInternal, http.StatusInternalServerError,
		"internal error", "The server encountered an unexpected condition.")

	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, http.StatusServiceUnavailable,
		"service unavailable", "A required dependency is currently unavailable.")

	ErrTooManyRequests = NewError(ErrCodeRateLimitExceeded, http.StatusTooManyRequests,
		"too many requests", "Too many attempts, please try again later.")

	ErrInvalidConfig = NewError(ErrCodeInvalidConfig, http.StatusInternalServerError,
		"invalid configuration", "")

	ErrBadCredentials = NewError(ErrCodeBadCredentials, http.StatusUnauthorized,
		"bad credentials", "The supplied credentials were not accepted.")

	ErrDatabaseConnection = NewError(ErrCodeServiceUnavailable, http.StatusServiceUnavailable,
		"database connection failed", "")
)

// ================================================================================
// CodecError
// ================================================================================

// CodecError reports a failure to sign or encrypt a token. It signals bad key
// material or configuration and is never a client-facing authentication result.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("token codec: %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// IsCodecError reports whether err wraps a CodecError.
func IsCodecError(err error) bool {
	var ce *CodecError
	return stderrors.As(err, &ce)
}

// HTTPStatusOf returns the status to answer with for err. Unknown errors map to 500.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
