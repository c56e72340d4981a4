package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: channel does not exist", NotFoundMessage("channel does not exist").Error())
	assert.Equal(t, "UNAUTHORIZED: invalid access token", Unauthorized("invalid access token").Error())
	assert.Equal(t, "INTERNAL_ERROR: an internal error occurred: pool closed", Internal(errors.New("pool closed")).Error())

	wrapped := &AppError{Code: "INTERNAL_ERROR", Message: "an internal error occurred", Err: errors.New("pool closed")}
	assert.Equal(t, "INTERNAL_ERROR: an internal error occurred: pool closed", wrapped.Error())
}

func TestConstructors(t *testing.T) {
	cause := errors.New("bucket unreachable")

	tests := []struct {
		name     string
		err      *AppError
		status   int
		code     string
		message  string
		sentinel error
	}{
		{"not found", NotFoundMessage("user does not exist"), http.StatusNotFound, "NOT_FOUND", "user does not exist", ErrNotFound},
		{"conflict", Conflict("user with email or username already exists"), http.StatusConflict, "CONFLICT", "user with email or username already exists", ErrConflict},
		{"invalid input", InvalidInput("avatar file is required"), http.StatusBadRequest, "INVALID_INPUT", "avatar file is required", ErrInvalidInput},
		{"unauthorized", Unauthorized("invalid access token"), http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", ErrUnauthorized},
		{"payload too large", PayloadTooLarge(1024), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "upload exceeds 1024 bytes", ErrPayloadTooLarge},
		{"internal", Internal(cause), http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", cause},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.message, tc.err.Message)
			assert.ErrorIs(t, tc.err, tc.sentinel)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tc.err), tc.sentinel)
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get user: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("insert: %w", ErrAlreadyExists), http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("circuit breaker open: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestHTTPStatus_AppErrorWinsOverCause(t *testing.T) {
	err := fmt.Errorf("refresh: %w", Unauthorized("refresh token is expired or used"))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
}
