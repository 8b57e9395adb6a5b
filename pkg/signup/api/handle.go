package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
	"github.com/pranavgnn/moodmeter/pkg/pkce"
	"github.com/pranavgnn/moodmeter/pkg/signup"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
}

type Handle struct {
	service      *signup.Service
	cookieSecure bool
}

type Option func(*Handle)

func WithCookieSecure(secure bool) Option {
	return func(h *Handle) {
		h.cookieSecure = secure
	}
}

func NewHandle(service *signup.Service, opts ...Option) *Handle {
	h := &Handle{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.Signup)
	return r
}

// Signup handles POST /
func (h *Handle) Signup(w http.ResponseWriter, r *http.Request) {
	var req signup.Request
	if err := utils.DecodeForm(r, &req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Response{Error: "Invalid request body"})
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		resp := Response{Error: apperrors.MessageOf(err, signup.MsgFailed)}
		if field, ok := apperrors.DetailOf(err, "field"); ok {
			resp.Field, _ = field.(string)
		}
		render.Status(r, apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err)))
		render.JSON(w, r, resp)
		return
	}

	if res.CodeVerifier != "" {
		pkce.SetCookie(w, res.CodeVerifier, h.cookieSecure)
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{Success: true, Message: res.Message})
}
