// Package identity is the client side of the external identity provider that
// owns credentials, confirmation tokens and sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"golang.org/x/oauth2"
)

// Purpose names what a one-time token proves.
type Purpose string

const (
	PurposeEmail    Purpose = "email"
	PurposeRecovery Purpose = "recovery"
	PurposeSignup   Purpose = "signup"
	// PurposeContinuation is reported for authorization-code exchanges, which
	// continue a signup or login started elsewhere.
	PurposeContinuation Purpose = "continuation"
)

// ParseOTPPurpose maps the wire "type" parameter of a one-time token.
func ParseOTPPurpose(s string) (Purpose, bool) {
	switch Purpose(s) {
	case PurposeEmail, PurposeRecovery, PurposeSignup:
		return Purpose(s), true
	}
	return "", false
}

// ConfirmsEmail reports whether a successful proof of this purpose confirms
// ownership of the account email.
func (p Purpose) ConfirmsEmail() bool {
	return p == PurposeEmail || p == PurposeSignup
}

// User is the provider-side account.
type User struct {
	ID               uuid.UUID
	Email            string
	Metadata         map[string]any
	EmailConfirmedAt *time.Time
}

// Username returns the username recorded in signup metadata, if any.
func (u User) Username() string {
	if v, ok := u.Metadata["username"].(string); ok {
		return v
	}
	return ""
}

// Session is a provider-issued credential for a user.
type Session struct {
	Token *oauth2.Token
	User  User
}

// AccessToken returns the bearer token, or "" for a nil session.
func (s *Session) AccessToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.AccessToken
}

type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]any
	// CodeChallenge enables the authorization-code confirmation flow (S256).
	CodeChallenge string
	RedirectTo    string
}

// Client is the set of provider operations the account flows depend on.
type Client interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error)
	VerifyOTP(ctx context.Context, tokenHash string, purpose Purpose) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, params SignUpParams) (User, error)
	// Resend re-sends the confirmation mail for an unconfirmed account.
	Resend(ctx context.Context, email string, purpose Purpose) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
}

const (
	CodeProviderError       = "provider_error"
	CodeProviderUnavailable = "provider_unavailable"
	CodeOTPExpired          = "otp_expired"
	CodeFlowStateNotFound   = "flow_state_not_found"
	CodeBadCodeVerifier     = "bad_code_verifier"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeEmailNotConfirmed   = "email_not_confirmed"
	CodeUserAlreadyExists   = "user_already_exists"
	CodeWeakPassword        = "weak_password"
	CodeOverEmailRateLimit  = "over_email_send_rate_limit"
	CodeBadJWT              = "bad_jwt"
)

// Error is an error reported by the identity provider.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity provider: %s (%d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("identity provider: %s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the provider error code carried by err.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return CodeProviderError
}

// IsRateLimited reports whether the provider throttled the request.
func IsRateLimited(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Status == http.StatusTooManyRequests || e.Code == CodeOverEmailRateLimit
}

// IsUnavailable reports whether the provider could not be reached.
func IsUnavailable(err error) bool {
	return ErrorCode(err) == CodeProviderUnavailable
}

// AppError maps a provider error onto the service error codes. The provider's
// own message is kept for codes whose text is meant for end users; everything
// else gets fallback.
func AppError(err error, fallback string) *apperrors.Error {
	if err == nil {
		return nil
	}
	var e *Error
	msg := fallback
	if errors.As(err, &e) {
		switch e.Code {
		case CodeWeakPassword, CodeOverEmailRateLimit, CodeUserAlreadyExists:
			if e.Message != "" {
				msg = e.Message
			}
		}
	}

	switch code := ErrorCode(err); {
	case IsRateLimited(err):
		return apperrors.Wrap(err, apperrors.ErrCodeRateLimitExceeded, msg)
	case code == CodeProviderUnavailable:
		return apperrors.Wrap(err, apperrors.ErrCodeProviderUnavailable, msg)
	case code == CodeOTPExpired:
		return apperrors.Wrap(err, apperrors.ErrCodeTokenExpired, msg)
	case code == CodeFlowStateNotFound, code == CodeBadCodeVerifier, code == CodeBadJWT:
		return apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, msg)
	case code == CodeWeakPassword:
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, msg)
	case code == CodeUserAlreadyExists:
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, msg)
	case code == CodeInvalidCredentials:
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidCredentials, msg)
	case code == CodeEmailNotConfirmed:
		return apperrors.Wrap(err, apperrors.ErrCodeEmailNotVerified, msg)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeProvider, msg)
	}
}
