// Package password implements the forgot-password and reset-password flows
// on top of the identity provider's recovery mail.
package password

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

const (
	MinLength = 6

	// ResetPath is where the recovery link lands after /auth/confirm.
	ResetPath = "/reset-password"

	MsgResetSent   = "Password reset email sent! Check your inbox."
	MsgUpdated     = "Password updated successfully!"
	MsgInvalidLink = "Invalid or expired reset link"
	MsgMissingLink = "Invalid reset link. Please request a new password reset."
)

type Service struct {
	client identity.Client
}

func NewService(client identity.Client) *Service {
	return &Service{client: client}
}

// RecoveryRedirect is the URL the recovery mail links back to.
func RecoveryRedirect(origin string) string {
	return strings.TrimRight(origin, "/") + "/auth/confirm?next=" + ResetPath
}

// RequestReset asks the provider to mail a recovery link for email. An empty
// origin leaves the redirect to the provider.
func (s *Service) RequestReset(ctx context.Context, email, origin string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.InvalidInput("Email is required")
	}
	var redirectTo string
	if origin != "" {
		redirectTo = RecoveryRedirect(origin)
	}
	if err := s.client.ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		slog.Error("Password reset request failed", "email", utils.MaskEmail(email), "err", err)
		return identity.AppError(err, "Failed to send reset email")
	}
	slog.Info("Password reset email requested", "email", utils.MaskEmail(email))
	return nil
}

// Reset sets a new password for the holder of a recovery session.
func (s *Service) Reset(ctx context.Context, accessToken, password, confirmPassword string) error {
	if strings.TrimSpace(password) == "" || strings.TrimSpace(confirmPassword) == "" {
		return apperrors.InvalidInput("Both password fields are required")
	}
	if password != confirmPassword {
		return apperrors.InvalidInput("Passwords do not match")
	}
	if len(password) < MinLength {
		return apperrors.InvalidInput("Password must be at least 6 characters long")
	}
	if accessToken == "" {
		return apperrors.New(apperrors.ErrCodeTokenInvalid, MsgMissingLink)
	}

	if err := s.client.UpdatePassword(ctx, accessToken, strings.TrimSpace(password)); err != nil {
		slog.Error("Password update failed", "err", err)
		switch identity.ErrorCode(err) {
		case identity.CodeBadJWT, identity.CodeOTPExpired:
			return apperrors.Wrap(err, apperrors.ErrCodeTokenExpired, MsgInvalidLink)
		}
		return identity.AppError(err, "Failed to update password")
	}
	return nil
}
