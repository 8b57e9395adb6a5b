package identity

import (
	"errors"
	"net/http"
	"testing"

	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
		wantMsg  string
	}{
		{"RateLimited", &Error{Status: http.StatusTooManyRequests, Code: CodeOverEmailRateLimit, Message: "Email rate limit exceeded"},
			apperrors.ErrCodeRateLimitExceeded, "Email rate limit exceeded"},
		{"Unavailable", &Error{Status: http.StatusServiceUnavailable, Code: CodeProviderUnavailable, Message: "circuit breaker is open"},
			apperrors.ErrCodeProviderUnavailable, "fallback"},
		{"Expired", &Error{Code: CodeOTPExpired, Message: "Token has expired or is invalid"}, apperrors.ErrCodeTokenExpired, "fallback"},
		{"BadJWT", &Error{Code: CodeBadJWT}, apperrors.ErrCodeTokenInvalid, "fallback"},
		{"WeakPassword", &Error{Code: CodeWeakPassword, Message: "Password should be at least 6 characters."},
			apperrors.ErrCodeInvalidInput, "Password should be at least 6 characters."},
		{"Exists", &Error{Code: CodeUserAlreadyExists, Message: "User already registered"}, apperrors.ErrCodeConflict, "User already registered"},
		{"Plain", errors.New("boom"), apperrors.ErrCodeProvider, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppError(tt.err, "fallback")
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Nil(t, AppError(nil, "fallback"))
}
