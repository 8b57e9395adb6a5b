// Package login gates password sign-in on the local profile's verification
// state.
package login

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/metrics"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/sessions"
	"github.com/pranavgnn/moodmeter/pkg/tokengenerator"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

const (
	DefaultInvalidFloor = 400 * time.Millisecond

	MsgInputRequired     = "Username and password are required"
	MsgNeedsVerification = "Please confirm your email address before logging in."
	MsgResendSent        = "Confirmation email sent! Check your inbox."
	MsgLoginFailed       = "Login failed, please try again"
)

type Status int

const (
	StatusInvalid Status = iota
	StatusNeedsVerification
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNeedsVerification:
		return "needs_verification"
	default:
		return "invalid"
	}
}

type Request struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// Result is the answer to a login attempt. Session, Profile and Token are set
// on success; Email is set when the account still needs verification.
type Result struct {
	Status    Status
	Session   *identity.Session
	Profile   profile.Profile
	Token     string
	ExpiresAt time.Time
	Email     string
}

// Err is the user-facing error for a non-success result.
func (r Result) Err() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusNeedsVerification:
		return apperrors.New(apperrors.ErrCodeEmailNotVerified, MsgNeedsVerification).WithDetail("email", r.Email)
	default:
		return apperrors.InvalidCredentials()
	}
}

type Gate struct {
	profiles     profile.Repository
	client       identity.Client
	tokens       tokengenerator.TokenGenerator
	sessions     *sessions.Service
	tokenExpiry  time.Duration
	invalidFloor time.Duration
	now          func() time.Time
}

type Option func(*Gate)

func WithTokenGenerator(g tokengenerator.TokenGenerator) Option {
	return func(gate *Gate) {
		gate.tokens = g
	}
}

func WithSessions(s *sessions.Service) Option {
	return func(gate *Gate) {
		gate.sessions = s
	}
}

func WithTokenExpiry(d time.Duration) Option {
	return func(gate *Gate) {
		gate.tokenExpiry = d
	}
}

// WithInvalidFloor sets the minimum latency of an Invalid answer.
func WithInvalidFloor(d time.Duration) Option {
	return func(gate *Gate) {
		gate.invalidFloor = d
	}
}

func NewGate(profiles profile.Repository, client identity.Client, opts ...Option) *Gate {
	g := &Gate{
		profiles:     profiles,
		client:       client,
		tokenExpiry:  tokengenerator.DefaultExpiry,
		invalidFloor: DefaultInvalidFloor,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AttemptLogin resolves the username to a profile and signs in with the
// provider only when the profile's email is verified. Blank input is
// rejected with an error before any lookup.
func (g *Gate) AttemptLogin(ctx context.Context, req Request) (Result, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return Result{}, apperrors.InvalidInput(MsgInputRequired)
	}

	start := g.now()
	res, err := g.attempt(ctx, username, req)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return Result{}, err
	}
	metrics.LoginAttempts.WithLabelValues(res.Status.String()).Inc()

	if res.Status == StatusInvalid {
		g.pad(ctx, start)
	}
	return res, nil
}

// attempt returns an error only for server faults after the provider has
// accepted the password.
func (g *Gate) attempt(ctx context.Context, username string, req Request) (Result, error) {
	p, err := g.profiles.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			slog.Info("Login for unknown username", "username", username)
		} else {
			slog.Error("Profile lookup failed during login", "username", username, "err", err)
		}
		return Result{Status: StatusInvalid}, nil
	}

	if !p.EmailVerified {
		slog.Info("Login blocked until email is verified", "username", username, "email", utils.MaskEmail(p.Email))
		return Result{Status: StatusNeedsVerification, Email: p.Email}, nil
	}

	session, err := g.client.SignInWithPassword(ctx, p.Email, req.Password)
	if err != nil || session == nil {
		slog.Info("Password sign-in rejected", "username", username, "error_code", identity.ErrorCode(err))
		return Result{Status: StatusInvalid}, nil
	}

	res := Result{Status: StatusSuccess, Session: session, Profile: p}
	if g.tokens == nil {
		return res, nil
	}

	token, claims, err := g.tokens.GenerateToken(p.ID.String(), g.tokenExpiry, tokengenerator.UserClaims{
		Username:      p.Username,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
	})
	if err != nil {
		slog.Error("Failed to issue session token", "username", username, "err", err)
		return Result{}, apperrors.InternalWrap(err, MsgLoginFailed)
	}
	res.Token = token
	res.ExpiresAt = claims.ExpiresAt.Time

	if g.sessions != nil {
		err := g.sessions.CreateSession(ctx, sessions.Session{
			JTI:       claims.ID,
			UserID:    p.ID,
			Username:  p.Username,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			IssuedAt:  claims.IssuedAt.Time,
			ExpiresAt: claims.ExpiresAt.Time,
		})
		if err != nil {
			slog.Error("Failed to register session", "username", username, "err", err)
			return Result{}, apperrors.InternalWrap(err, MsgLoginFailed)
		}
	}
	return res, nil
}

// pad holds an Invalid answer until the floor has elapsed so unknown
// usernames and wrong passwords take the same time.
func (g *Gate) pad(ctx context.Context, start time.Time) {
	wait := g.invalidFloor - g.now().Sub(start)
	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Resend re-sends the signup confirmation for email. Failures are reported to
// the caller and never change the account state.
func (g *Gate) Resend(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.InvalidInput("Email is required")
	}
	if err := g.client.Resend(ctx, email, identity.PurposeSignup); err != nil {
		slog.Warn("Confirmation resend failed", "email", utils.MaskEmail(email), "error_code", identity.ErrorCode(err))
		return identity.AppError(err, "Failed to resend confirmation email")
	}
	return nil
}
