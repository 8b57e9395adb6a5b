package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/availability"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	repo := new(profile.MockRepository)
	repo.On("GetByUsername", mock.Anything, "eve").Return(profile.Profile{ID: uuid.New()}, nil)
	repo.On("GetByEmail", mock.Anything, "ann@example.com").Return(profile.Profile{}, profile.ErrNotFound)
	h := Handler(NewHandle(availability.NewChecker(repo)))

	tests := []struct {
		name  string
		url   string
		field string
		value string
		want  availability.Availability
	}{
		{"Username", "/?username=eve", "username", "eve", availability.Taken},
		{"Email", "/?email=ann%40example.com", "email", "ann@example.com", availability.Available},
		{"BlankUsername", "/?username=", "username", "", availability.Indeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, Response{Field: tt.field, Value: tt.value, Availability: tt.want}, resp)
		})
	}
}

func TestGet_MissingQuery(t *testing.T) {
	h := Handler(NewHandle(availability.NewChecker(new(profile.MockRepository))))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
