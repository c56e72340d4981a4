package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/logger"
	"github.com/vidtube/backend/pkg/validator"
)

// Response is the standard success envelope used by every endpoint.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorResponse is the standard error envelope. Errors is always present,
// and empty unless the failure carries field-level details.
type ErrorResponse struct {
	StatusCode int          `json:"statusCode"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Success    bool         `json:"success"`
	Errors     []FieldError `json:"errors"`
	RequestID  string       `json:"requestId,omitempty"`
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess wraps data in the success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// WriteErrorResponse writes an error envelope without consulting the error
// taxonomy. Middleware that runs outside a handler uses it directly.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		StatusCode: status,
		Code:       code,
		Message:    message,
		Errors:     []FieldError{},
	})
}

// WriteError renders err into the error envelope. AppErrors keep their code,
// message and status; sentinel errors are mapped; anything else becomes a
// generic 500 whose details are only logged. It prefers the request-scoped
// logger from context (set by the RequestLogger middleware) over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(r, l, err)
		}
		WriteJSON(w, appErr.Status, ErrorResponse{
			StatusCode: appErr.Status,
			Code:       appErr.Code,
			Message:    appErr.Message,
			Errors:     []FieldError{},
			RequestID:  requestID,
		})
		return
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeValidation(w, valErr, requestID)
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code = "ALREADY_EXISTS"
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		code = "UNAUTHORIZED"
		message = "unauthorized request"
	}

	if status == http.StatusInternalServerError {
		logInternal(r, l, err)
	}

	WriteJSON(w, status, ErrorResponse{
		StatusCode: status,
		Code:       code,
		Message:    message,
		Errors:     []FieldError{},
		RequestID:  requestID,
	})
}

// WriteValidationError writes a 400 response. ValidationErrors from the
// validator package are expanded into per-field entries.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeValidation(w, valErr, "")
		return
	}

	WriteErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
}

func writeValidation(w http.ResponseWriter, valErr *validator.ValidationError, requestID string) {
	fields := valErr.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	details := make([]FieldError, 0, len(names))
	for _, name := range names {
		details = append(details, FieldError{Field: name, Message: fields[name]})
	}

	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    "request validation failed",
		Errors:     details,
		RequestID:  requestID,
	})
}

func logInternal(r *http.Request, l *slog.Logger, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}
