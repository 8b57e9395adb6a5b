// Package signup creates accounts. Its uniqueness checks are authoritative,
// unlike the advisory availability checks a form makes while typing.
package signup

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/pkce"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/reconcile"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

const (
	MsgFieldsRequired   = "All fields are required"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgUsernameTaken    = "Username is already taken"
	MsgEmailTaken       = "Email is already registered"
	MsgFailed           = "Failed to create account"
	MsgCreated          = "Account created! Check your email to confirm your address before logging in."
)

type Request struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type Result struct {
	User    identity.User
	Message string
	// CodeVerifier must be kept by the browser until the confirmation link
	// is exchanged. Empty when PKCE is off.
	CodeVerifier string
}

type Service struct {
	profiles   profile.Repository
	client     identity.Client
	reconciler *reconcile.Reconciler
	usePKCE    bool
	redirectTo string
}

type Option func(*Service)

func WithPKCE(enabled bool) Option {
	return func(s *Service) {
		s.usePKCE = enabled
	}
}

// WithRedirectTo sets where the confirmation link lands.
func WithRedirectTo(url string) Option {
	return func(s *Service) {
		s.redirectTo = url
	}
}

// WithReconciler routes pre-create failures to the reconcile warning sink.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Service) {
		s.reconciler = r
	}
}

func NewService(profiles profile.Repository, client identity.Client, opts ...Option) *Service {
	s := &Service{profiles: profiles, client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, req Request) (Result, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if strings.TrimSpace(req.Password) == "" {
		req.Password = ""
	}
	if err := validate(req); err != nil {
		return Result{}, err
	}

	if _, err := s.profiles.GetByUsername(ctx, req.Username); err == nil {
		return Result{}, apperrors.New(apperrors.ErrCodeConflict, MsgUsernameTaken).WithDetail("field", profile.FieldUsername)
	} else if !errors.Is(err, profile.ErrNotFound) {
		slog.Error("Username check failed", "username", req.Username, "err", err)
		return Result{}, apperrors.InternalWrap(err, MsgFailed)
	}

	email := profile.NormalizeEmail(req.Email)
	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return Result{}, apperrors.New(apperrors.ErrCodeConflict, MsgEmailTaken).WithDetail("field", profile.FieldEmail)
	} else if !errors.Is(err, profile.ErrNotFound) {
		slog.Error("Email check failed", "email", utils.MaskEmail(email), "err", err)
		return Result{}, apperrors.InternalWrap(err, MsgFailed)
	}

	params := identity.SignUpParams{
		Email:      email,
		Password:   req.Password,
		Metadata:   map[string]any{"username": req.Username},
		RedirectTo: s.redirectTo,
	}
	var verifier string
	if s.usePKCE {
		cv, err := pkce.GenerateCodeVerifier()
		if err != nil {
			return Result{}, apperrors.InternalWrap(err, MsgFailed)
		}
		verifier = cv.Value
		params.CodeChallenge = cv.Challenge()
	}

	user, err := s.client.SignUp(ctx, params)
	if err != nil {
		slog.Error("Provider signup failed", "username", req.Username, "error_code", identity.ErrorCode(err), "err", err)
		if identity.ErrorCode(err) == identity.CodeUserAlreadyExists {
			return Result{}, apperrors.Wrap(err, apperrors.ErrCodeConflict, MsgEmailTaken).WithDetail("field", profile.FieldEmail)
		}
		return Result{}, identity.AppError(err, MsgFailed)
	}

	s.precreate(ctx, user.ID, req.Username, email)
	slog.Info("Account created", "user_id", user.ID, "username", req.Username)
	return Result{User: user, Message: MsgCreated, CodeVerifier: verifier}, nil
}

// precreate inserts the unverified profile. The provider account already
// exists, so a failure here is reported and left to verification to repair.
func (s *Service) precreate(ctx context.Context, id uuid.UUID, username, email string) {
	_, err := s.profiles.Insert(ctx, profile.Profile{ID: id, Username: username, Email: email})
	if err == nil {
		return
	}
	if s.reconciler != nil {
		s.reconciler.Report(ctx, reconcile.WarningPrecreateFailed, id, email, username, err)
		return
	}
	slog.Warn("Profile pre-create failed", "user_id", id, "username", username, "err", err)
}

func validate(req Request) error {
	err := utils.Validate(req)
	if err == nil {
		return nil
	}
	switch {
	case utils.HasTag(err, "required"):
		return apperrors.InvalidInput(MsgFieldsRequired)
	case utils.HasTag(err, "email"):
		return apperrors.InvalidInput(MsgInvalidEmail)
	case utils.HasTag(err, "min"):
		return apperrors.InvalidInput(MsgPasswordTooShort)
	default:
		return apperrors.InvalidInput(MsgFieldsRequired)
	}
}
