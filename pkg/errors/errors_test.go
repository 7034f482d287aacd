package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
		code     string
	}{
		{"not found", NotFound("user", "u-1"), http.StatusNotFound, ErrNotFound, "NOT_FOUND"},
		{"already exists", AlreadyExists("user", "email", "a@x.com"), http.StatusConflict, ErrAlreadyExists, "ALREADY_EXISTS"},
		{"bad request", BadRequest("gmail not verified"), http.StatusBadRequest, ErrBadRequest, "BAD_REQUEST"},
		{"unauthorized", Unauthorized("access token is required"), http.StatusUnauthorized, ErrUnauthorized, "UNAUTHORIZED"},
		{"forbidden", Forbidden("account not verified"), http.StatusForbidden, ErrForbidden, "FORBIDDEN"},
		{"session revoked", SessionRevoked("refresh token has been used or does not exist"), http.StatusUnauthorized, ErrSessionRevoked, "SESSION_REVOKED"},
		{"upstream", Upstream("google oauth", errors.New("dial tcp: timeout")), http.StatusServiceUnavailable, ErrUpstream, "UPSTREAM_UNAVAILABLE"},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError, nil, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
			}
		})
	}
}

func TestValidation_CarriesFieldMap(t *testing.T) {
	fields := map[string]string{
		"email":    "email is invalid",
		"password": "password must be strong",
	}
	err := Validation(fields)

	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Equal(t, fields, err.Fields)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSessionRevoked_DistinctFromUnauthorized(t *testing.T) {
	err := SessionRevoked("rotated away")
	assert.ErrorIs(t, err, ErrSessionRevoked)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("find session: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unexpected")))
}

func TestAppError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("scan user: connection reset")
	err := Internal(cause)

	require.ErrorIs(t, err, cause)
	// Caller-safe message never exposes the cause.
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Contains(t, err.Error(), "connection reset")
}
