package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndInspect(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeProviderUnavailable, "Service temporarily unavailable")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrCodeProviderUnavailable))
	assert.Equal(t, ErrCodeProviderUnavailable, GetCode(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, "Service temporarily unavailable", MessageOf(err, "fallback"))
	assert.Contains(t, err.Error(), "connection refused")

	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))
}

func TestPlainErrors(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, ErrCodeInternal, GetCode(err))
	assert.Equal(t, "fallback", MessageOf(err, "fallback"))
	assert.False(t, IsCode(err, ErrCodeInternal))
	_, ok := DetailOf(err, "field")
	assert.False(t, ok)
}

func TestDetails(t *testing.T) {
	err := New(ErrCodeConflict, "Username is already taken").WithDetail("field", "username")
	v, ok := DetailOf(fmt.Errorf("wrapped: %w", err), "field")
	assert.True(t, ok)
	assert.Equal(t, "username", v)

	_, ok = DetailOf(err, "missing")
	assert.False(t, ok)
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeEmailNotVerified, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrCodeProvider, http.StatusBadGateway},
		{ErrCodeProviderUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCodeToHTTPStatus(tt.code))
			assert.Equal(t, tt.want, New(tt.code, "").HTTPStatusCode())
		})
	}
}

func TestInvalidCredentialsIsUniform(t *testing.T) {
	a, b := InvalidCredentials(), InvalidCredentials()
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, a.Code, b.Code)
}
