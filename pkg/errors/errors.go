// Package errors defines the application error taxonomy. Every error that
// reaches an HTTP client is either an *AppError or wraps one of the
// sentinels below.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels shared by repositories, services and the HTTP layer.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrServiceUnavail  = errors.New("service unavailable")
)

// AppError carries the client-facing code and message plus the HTTP status.
// Err is the underlying cause, kept for errors.Is and logs only. kind is the
// sentinel for the error's category; it matches errors.Is but stays out of
// the error text.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	kind error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	return errs
}

func newAppError(status int, code, message string, kind, cause error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: cause, kind: kind}
}

// NotFoundMessage creates a 404.
func NotFoundMessage(message string) *AppError {
	return newAppError(http.StatusNotFound, "NOT_FOUND", message, ErrNotFound, nil)
}

// Conflict creates a 409, e.g. for a taken username or email.
func Conflict(message string) *AppError {
	return newAppError(http.StatusConflict, "CONFLICT", message, ErrConflict, nil)
}

// InvalidInput creates a 400.
func InvalidInput(message string) *AppError {
	return newAppError(http.StatusBadRequest, "INVALID_INPUT", message, ErrInvalidInput, nil)
}

// Unauthorized creates a 401.
func Unauthorized(message string) *AppError {
	return newAppError(http.StatusUnauthorized, "UNAUTHORIZED", message, ErrUnauthorized, nil)
}

// PayloadTooLarge creates a 413 for a request body above limit bytes.
func PayloadTooLarge(limit int64) *AppError {
	return newAppError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
		fmt.Sprintf("upload exceeds %d bytes", limit), ErrPayloadTooLarge, nil)
}

// Internal creates a 500. The wrapped error is never shown to clients.
func Internal(err error) *AppError {
	return newAppError(http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", nil, err)
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
