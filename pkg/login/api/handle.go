package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/pranavgnn/moodmeter/pkg/client"
	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/pranavgnn/moodmeter/pkg/login"
	"github.com/pranavgnn/moodmeter/pkg/sessions"
	"github.com/pranavgnn/moodmeter/pkg/tokengenerator"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

type LoginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResendForm struct {
	Email string `json:"email"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type ErrorResponse struct {
	Error             string `json:"error"`
	ErrorCode         string `json:"errorCode,omitempty"`
	NeedsVerification bool   `json:"needsVerification,omitempty"`
	Email             string `json:"email,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type SessionResponse struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Handle struct {
	gate      *login.Gate
	sessions  *sessions.Service
	tokenAuth *jwtauth.JWTAuth
	cookies   *tokengenerator.CookieSetter
}

type Option func(*Handle)

func WithSessions(s *sessions.Service) Option {
	return func(h *Handle) {
		h.sessions = s
	}
}

func WithCookieSetter(c *tokengenerator.CookieSetter) Option {
	return func(h *Handle) {
		h.cookies = c
	}
}

func NewHandle(gate *login.Gate, tokenAuth *jwtauth.JWTAuth, opts ...Option) *Handle {
	h := &Handle{gate: gate, tokenAuth: tokenAuth}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler serves /login, /login/resend, /logout and /session.
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.PostLogin)
	r.Post("/login/resend", h.PostResend)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokenAuth))
		r.Use(jwtauth.Authenticator(h.tokenAuth))
		r.Use(LiveSession(h.sessions))
		r.Use(client.AuthUserMiddleware)
		r.Post("/logout", h.PostLogout)
		r.Get("/session", h.GetSession)
	})
	return r
}

// PostLogin handles POST /login
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var form LoginForm
	if err := utils.DecodeForm(r, &form); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Unable to parse request body", ErrorCode: errorCode(apperrors.ErrCodeInvalidInput)})
		return
	}

	req := login.Request{}
	copier.Copy(&req, form)
	req.IPAddress = utils.ClientIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.gate.AttemptLogin(r.Context(), req)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		resp := ErrorResponse{
			Error:     apperrors.MessageOf(err, "Invalid username or password"),
			ErrorCode: errorCode(apperrors.GetCode(err)),
		}
		if res.Status == login.StatusNeedsVerification {
			resp.NeedsVerification = true
			resp.Email = res.Email
		}
		render.Status(r, apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err)))
		render.JSON(w, r, resp)
		return
	}

	user := User{}
	copier.Copy(&user, res.Profile)
	user.ID = res.Profile.ID.String()
	if h.cookies != nil && res.Token != "" {
		h.cookies.SetCookie(w, res.Token, res.ExpiresAt)
	}
	render.JSON(w, r, LoginResponse{Success: true, Token: res.Token, ExpiresAt: res.ExpiresAt, User: user})
}

// PostResend handles POST /login/resend
func (h *Handle) PostResend(w http.ResponseWriter, r *http.Request) {
	var form ResendForm
	if err := utils.DecodeForm(r, &form); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Unable to parse request body", ErrorCode: errorCode(apperrors.ErrCodeInvalidInput)})
		return
	}
	if err := h.gate.Resend(r.Context(), form.Email); err != nil {
		render.Status(r, apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err)))
		render.JSON(w, r, ErrorResponse{
			Error:     apperrors.MessageOf(err, "Failed to resend confirmation email"),
			ErrorCode: errorCode(apperrors.GetCode(err)),
		})
		return
	}
	render.JSON(w, r, MessageResponse{Success: true, Message: login.MsgResendSent})
}

// PostLogout handles POST /logout
func (h *Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err == nil && token != nil && h.sessions != nil {
		if err := h.sessions.Revoke(r.Context(), token.JwtID()); err != nil {
			slog.Error("Failed to revoke session", "jti", token.JwtID(), "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Error: "Failed to log out", ErrorCode: errorCode(apperrors.ErrCodeInternal)})
			return
		}
	}
	if h.cookies != nil {
		h.cookies.ClearCookie(w)
	}
	render.JSON(w, r, MessageResponse{Success: true})
}

// GetSession handles GET /session
func (h *Handle) GetSession(w http.ResponseWriter, r *http.Request) {
	token, _, err := jwtauth.FromContext(r.Context())
	authUser := client.GetAuthUser(r)
	if err != nil || token == nil || authUser == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized", ErrorCode: errorCode(apperrors.ErrCodeUnauthorized)})
		return
	}
	user := User{}
	copier.Copy(&user, authUser)
	user.ID = authUser.UserID
	render.JSON(w, r, SessionResponse{User: user, ExpiresAt: token.Expiration()})
}

// LiveSession rejects tokens whose session was revoked. It runs after
// jwtauth.Authenticator.
func LiveSession(registry *sessions.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if registry == nil {
				next.ServeHTTP(w, r)
				return
			}
			token, _, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			ok, err := registry.IsValid(r.Context(), token.JwtID())
			if err != nil {
				slog.Error("Session lookup failed", "jti", token.JwtID(), "err", err)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func errorCode(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeInvalidCredentials:
		return "invalid_credentials"
	case apperrors.ErrCodeEmailNotVerified:
		return "email_not_confirmed"
	case apperrors.ErrCodeInvalidInput:
		return "invalid_input"
	case apperrors.ErrCodeRateLimitExceeded:
		return "rate_limited"
	case apperrors.ErrCodeProviderUnavailable:
		return "provider_unavailable"
	case apperrors.ErrCodeUnauthorized:
		return "unauthorized"
	case apperrors.ErrCodeInternal:
		return "internal_error"
	default:
		return "provider_error"
	}
}
