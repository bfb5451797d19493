package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the notification engine. They double as the machine readable
// "code" rendered to API consumers.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeTransport    = "TRANSPORT_ERROR"
	CodeCapability   = "CAPABILITY_UNAVAILABLE"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code so sentinel comparisons survive WithInternal copies.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       CodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       CodeForbidden,
		Message:    "Access denied",
		StatusCode: http.StatusForbidden,
	}

	ErrRateLimited = &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrNotFound = &AppError{
		Code:       CodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrValidation = &AppError{
		Code:       CodeValidation,
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrTransport = &AppError{
		Code:       CodeTransport,
		Message:    "Notification store unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrCapability = &AppError{
		Code:       CodeCapability,
		Message:    "Push notifications are unavailable",
		StatusCode: http.StatusNotImplemented,
	}

	ErrInternalServer = &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewValidation reports a malformed request.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFound reports an unknown recipient, notification or template.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewTransport wraps a store or real-time channel failure.
func NewTransport(message string, err error) *AppError {
	return &AppError{
		Code:       CodeTransport,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Internal:   err,
	}
}

// NewCapability reports a runtime capability that is missing or was denied.
func NewCapability(message string) *AppError {
	return &AppError{
		Code:       CodeCapability,
		Message:    message,
		StatusCode: http.StatusNotImplemented,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// CodeOf returns the AppError code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}

// IsCode reports whether err carries the supplied AppError code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
