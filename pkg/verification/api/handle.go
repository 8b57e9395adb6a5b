package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/password"
	"github.com/pranavgnn/moodmeter/pkg/pkce"
	"github.com/pranavgnn/moodmeter/pkg/verification"
)

// LoginPath receives failed verifications.
const LoginPath = "/login"

type ConfirmResponse struct {
	Success   bool   `json:"success"`
	Type      string `json:"type,omitempty"`
	Next      string `json:"next,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type Handle struct {
	dispatcher   *verification.Dispatcher
	cookieSecure bool
}

type Option func(*Handle)

func WithCookieSecure(secure bool) Option {
	return func(h *Handle) {
		h.cookieSecure = secure
	}
}

func NewHandle(dispatcher *verification.Dispatcher, opts ...Option) *Handle {
	h := &Handle{dispatcher: dispatcher}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/confirm", h.ConfirmRedirect)
	r.Post("/confirm", h.Confirm)
	return r
}

// ConfirmRedirect handles GET /confirm, the landing page of emailed links.
func (h *Handle) ConfirmRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := verification.Params{
		Code:             q.Get("code"),
		TokenHash:        q.Get("token_hash"),
		Type:             q.Get("type"),
		Next:             q.Get("next"),
		Error:            q.Get("error"),
		ErrorCode:        q.Get("error_code"),
		ErrorDescription: q.Get("error_description"),
	}
	out := h.verify(w, r, params)

	if !out.Success {
		target := url.URL{Path: LoginPath, RawQuery: url.Values{
			"error":      {out.Reason},
			"error_code": {out.ErrorCode},
		}.Encode()}
		http.Redirect(w, r, target.String(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, out.Next, http.StatusSeeOther)
}

// Confirm handles POST /confirm. The browser posts the query parameters
// together with any error fragment of the landing URL.
func (h *Handle) Confirm(w http.ResponseWriter, r *http.Request) {
	var params verification.Params
	if err := render.DecodeJSON(r.Body, &params); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ConfirmResponse{Error: "Invalid request body"})
		return
	}
	out := h.verify(w, r, params)

	if !out.Success {
		status := http.StatusBadRequest
		if out.ErrorCode == identity.CodeProviderUnavailable {
			status = http.StatusServiceUnavailable
		}
		render.Status(r, status)
		render.JSON(w, r, ConfirmResponse{Error: out.Reason, ErrorCode: out.ErrorCode})
		return
	}
	render.JSON(w, r, ConfirmResponse{Success: true, Type: string(out.Purpose), Next: out.Next})
}

func (h *Handle) verify(w http.ResponseWriter, r *http.Request, params verification.Params) verification.Outcome {
	params.CodeVerifier = pkce.FromRequest(r)
	out := h.dispatcher.Verify(r.Context(), params)

	if params.CodeVerifier != "" && params.Code != "" {
		pkce.ClearCookie(w, h.cookieSecure)
	}
	if !out.Success {
		return out
	}
	if out.Purpose == identity.PurposeRecovery && out.Next == "/" {
		out.Next = password.ResetPath
	}
	// PKCE recovery links come back as a code exchange headed for the reset page.
	if out.Purpose == identity.PurposeRecovery || out.Next == password.ResetPath {
		password.SetRecoveryCookie(w, out.Session, h.cookieSecure)
	}
	return out
}
