package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/notification"
	"github.com/pranavgnn/moodmeter/pkg/password"
	"github.com/pranavgnn/moodmeter/pkg/pkce"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/reconcile"
	"github.com/pranavgnn/moodmeter/pkg/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestConfirmRedirect_ErrorFragment(t *testing.T) {
	client := new(identity.MockClient)
	h := Handler(NewHandle(verification.NewDispatcher(client, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/confirm?error=access_denied&error_code=otp_expired&error_description=Email+link+is+invalid+or+has+expired", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, LoginPath, loc.Path)
	assert.Equal(t, "otp_expired", loc.Query().Get("error_code"))
	assert.Equal(t, "Email link is invalid or has expired", loc.Query().Get("error"))
	assert.Empty(t, client.Calls)
}

func TestConfirmRedirect_CodeUsesPKCECookie(t *testing.T) {
	client := new(identity.MockClient)
	client.On("ExchangeCode", mock.Anything, "abc", "the-verifier").
		Return(&identity.Session{User: identity.User{ID: uuid.New()}}, nil)
	h := Handler(NewHandle(verification.NewDispatcher(client, nil)))

	req := httptest.NewRequest(http.MethodGet, "/confirm?code=abc&next=/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: pkce.CookieName, Value: "the-verifier"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	cleared := cookieByName(rec, pkce.CookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
	client.AssertExpectations(t)
}

func TestConfirmRedirect_OpenRedirectGuard(t *testing.T) {
	client := new(identity.MockClient)
	client.On("VerifyOTP", mock.Anything, "abc", identity.PurposeEmail).
		Return(&identity.Session{User: identity.User{ID: uuid.New()}}, nil)
	h := Handler(NewHandle(verification.NewDispatcher(client, nil)))

	tests := []struct {
		name string
		next string
	}{
		{"ProtocolRelative", "//evil.example"},
		{"Backslash", "/%5Cevil.example"},
		{"TabThenSlash", "/%09/evil.example"},
		{"TabThenBackslash", "/%09%5Cevil.example"},
		{"NewlineThenSlash", "/%0A/evil.example"},
		{"Absolute", "https%3A%2F%2Fevil.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/confirm?token_hash=abc&type=email&next="+tt.next, nil))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
		})
	}
}

func TestConfirmRedirect_RecoverySetsCookie(t *testing.T) {
	ctx := context.Background()
	notices := &notification.RecordingNotifier{}
	provider := identity.NewMemoryProvider(identity.WithNotifier(notices), identity.WithResendSpacing(0))
	repo, err := profile.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	_, err = provider.SignUp(ctx, identity.SignUpParams{Email: "ann@example.com", Password: "secret1", Metadata: map[string]any{"username": "ann"}})
	require.NoError(t, err)
	require.NoError(t, provider.ResetPasswordForEmail(ctx, "ann@example.com", password.RecoveryRedirect("http://example.com")))

	sent, ok := notices.Last(notification.RecoveryNotice, "ann@example.com")
	require.True(t, ok)
	link, err := url.Parse(sent.Data["Link"])
	require.NoError(t, err)

	h := Handler(NewHandle(verification.NewDispatcher(provider, reconcile.New(repo))))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/confirm?"+link.RawQuery, nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, password.ResetPath, rec.Header().Get("Location"))
	c := cookieByName(rec, password.RecoveryCookieName)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)

	// Recovery does not confirm the email.
	_, err = repo.GetByEmail(ctx, "ann@example.com")
	assert.ErrorIs(t, err, profile.ErrNotFound)

	require.NoError(t, provider.UpdatePassword(ctx, c.Value, "newpass1"))
}

func TestConfirmRedirect_RecoveryWithoutNextLandsOnReset(t *testing.T) {
	client := new(identity.MockClient)
	client.On("VerifyOTP", mock.Anything, "rec", identity.PurposeRecovery).
		Return(&identity.Session{Token: &oauth2.Token{AccessToken: "recovery-token"}, User: identity.User{ID: uuid.New()}}, nil)
	h := Handler(NewHandle(verification.NewDispatcher(client, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/confirm?token_hash=rec&type=recovery", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, password.ResetPath, rec.Header().Get("Location"))
	c := cookieByName(rec, password.RecoveryCookieName)
	require.NotNil(t, c)
	assert.Equal(t, "recovery-token", c.Value)
}

func TestConfirm_JSON(t *testing.T) {
	t.Run("NoMaterial", func(t *testing.T) {
		h := Handler(NewHandle(verification.NewDispatcher(new(identity.MockClient), nil)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(`{"next":"/"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ConfirmResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, verification.ReasonNoMaterial, resp.Error)
		assert.Equal(t, verification.CodeNoMaterial, resp.ErrorCode)
	})

	t.Run("Success", func(t *testing.T) {
		client := new(identity.MockClient)
		client.On("VerifyOTP", mock.Anything, "abc", identity.PurposeEmail).
			Return(&identity.Session{User: identity.User{ID: uuid.New()}}, nil)
		h := Handler(NewHandle(verification.NewDispatcher(client, nil)))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(`{"token_hash":"abc","type":"email","next":"/dashboard"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp ConfirmResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ConfirmResponse{Success: true, Type: "email", Next: "/dashboard"}, resp)
	})

	t.Run("ProviderDown", func(t *testing.T) {
		client := new(identity.MockClient)
		client.On("VerifyOTP", mock.Anything, "abc", identity.PurposeEmail).
			Return(nil, &identity.Error{Status: http.StatusServiceUnavailable, Code: identity.CodeProviderUnavailable})
		h := Handler(NewHandle(verification.NewDispatcher(client, nil)))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(`{"token_hash":"abc","type":"email"}`)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
