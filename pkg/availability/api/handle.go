package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pranavgnn/moodmeter/pkg/availability"
)

type Response struct {
	Field        string                    `json:"field"`
	Value        string                    `json:"value"`
	Availability availability.Availability `json:"availability"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handle struct {
	checker *availability.Checker
}

func NewHandle(checker *availability.Checker) *Handle {
	return &Handle{checker: checker}
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	return r
}

// Get handles GET /?username= or GET /?email=
func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field := availability.FieldUsername
	if !q.Has("username") {
		if !q.Has("email") {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "username or email is required"})
			return
		}
		field = availability.FieldEmail
	}

	value := q.Get(string(field))
	render.JSON(w, r, Response{
		Field:        string(field),
		Value:        value,
		Availability: h.checker.Check(r.Context(), field, value),
	})
}
