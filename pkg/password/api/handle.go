package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/pranavgnn/moodmeter/pkg/password"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

type ForgotRequest struct {
	Email string `json:"email"`
}

type ResetRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Handle struct {
	service      *password.Service
	siteURL      string
	cookieSecure bool
}

type Option func(*Handle)

// WithSiteURL sets the origin used in recovery links. Without it the links
// use the identity provider's own redirect; the request Host is never used.
func WithSiteURL(siteURL string) Option {
	return func(h *Handle) {
		h.siteURL = siteURL
	}
}

func WithCookieSecure(secure bool) Option {
	return func(h *Handle) {
		h.cookieSecure = secure
	}
}

func NewHandle(service *password.Service, opts ...Option) *Handle {
	h := &Handle{service: service}
	for _, opt := range opts {
		opt(h)
	}
	if h.siteURL == "" {
		slog.Warn("No site URL configured, recovery links use the identity provider's default redirect")
	}
	return h
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/forgot", h.Forgot)
	r.Post("/reset", h.Reset)
	return r
}

// Forgot handles POST /forgot
func (h *Handle) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotRequest
	if err := utils.DecodeForm(r, &req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Response{Error: "Invalid request body"})
		return
	}

	if err := h.service.RequestReset(r.Context(), req.Email, h.siteURL); err != nil {
		writeError(w, r, err, "Failed to send reset email")
		return
	}
	render.JSON(w, r, Response{Success: true, Message: password.MsgResetSent})
}

// Reset handles POST /reset
func (h *Handle) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := utils.DecodeForm(r, &req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Response{Error: "Invalid request body"})
		return
	}

	err := h.service.Reset(r.Context(), password.RecoveryToken(r), req.Password, req.ConfirmPassword)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeTokenExpired) {
			password.ClearRecoveryCookie(w, h.cookieSecure)
		}
		writeError(w, r, err, "Failed to update password")
		return
	}

	password.ClearRecoveryCookie(w, h.cookieSecure)
	render.JSON(w, r, Response{Success: true, Message: password.MsgUpdated})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err)))
	render.JSON(w, r, Response{Error: apperrors.MessageOf(err, fallback)})
}
