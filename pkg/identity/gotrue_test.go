package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTrueClient_ExchangeCode(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the-code", body["auth_code"])
		assert.Equal(t, "the-verifier", body["code_verifier"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "rt",
			"user": map[string]any{
				"id":            userID,
				"email":         "ann@example.com",
				"user_metadata": map[string]any{"username": "ann"},
			},
		})
	}))
	defer srv.Close()

	c := NewGoTrueClient(srv.URL, WithAPIKey("anon-key"))
	s, err := c.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken())
	assert.Equal(t, "rt", s.Token.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Token.Expiry, time.Minute)
	assert.Equal(t, userID, s.User.ID)
	assert.Equal(t, "ann", s.User.Username())
}

func TestGoTrueClient_ErrorShapes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"ErrorCodeShape", http.StatusForbidden, `{"code":403,"error_code":"otp_expired","msg":"Email link is invalid or has expired"}`, "otp_expired", "Email link is invalid or has expired"},
		{"OAuthShape", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "invalid_grant", "Invalid login credentials"},
		{"RateLimitedNoCode", http.StatusTooManyRequests, `{"msg":"slow down"}`, CodeOverEmailRateLimit, "slow down"},
		{"NotJSON", http.StatusBadRequest, `nope`, CodeProviderError, "Bad Request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGoTrueClient(srv.URL).VerifyOTP(context.Background(), "abc", PurposeEmail)
			require.Error(t, err)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.Status)
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.Equal(t, tt.wantMsg, perr.Message)
		})
	}
}

func TestGoTrueClient_VerifyOTPBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"type": "recovery", "token_hash": "abc"}, body)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "expires_at": time.Now().Add(time.Hour).Unix()})
	}))
	defer srv.Close()

	s, err := NewGoTrueClient(srv.URL).VerifyOTP(context.Background(), "abc", PurposeRecovery)
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken())
}

func TestGoTrueClient_SignUp(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signup", r.URL.Path)
		assert.Equal(t, "https://moodmeter.test/auth/confirm", r.URL.Query().Get("redirect_to"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "challenge", body["code_challenge"])
		assert.Equal(t, "s256", body["code_challenge_method"])
		assert.Equal(t, map[string]any{"username": "ann"}, body["data"])

		// confirmation pending: bare user object
		json.NewEncoder(w).Encode(map[string]any{"id": userID, "email": "ann@example.com"})
	}))
	defer srv.Close()

	u, err := NewGoTrueClient(srv.URL).SignUp(context.Background(), SignUpParams{
		Email:         "ann@example.com",
		Password:      "secret1",
		Metadata:      map[string]any{"username": "ann"},
		CodeChallenge: "challenge",
		RedirectTo:    "https://moodmeter.test/auth/confirm",
	})
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
}

func TestGoTrueClient_UpdatePasswordUsesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewGoTrueClient(srv.URL)
	require.NoError(t, c.UpdatePassword(context.Background(), "session-token", "newsecret"))

	err := c.UpdatePassword(context.Background(), "", "newsecret")
	assert.Equal(t, CodeBadJWT, ErrorCode(err))
}

func TestGoTrueClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGoTrueClient(srv.URL, WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := c.Resend(ctx, "ann@example.com", PurposeSignup)
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusBadGateway, perr.Status)
	}

	err := c.Resend(ctx, "ann@example.com", PurposeSignup)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestGoTrueClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewGoTrueClient(url, WithTimeout(time.Second)).SignInWithPassword(context.Background(), "a@example.com", "x")
	assert.True(t, IsUnavailable(err))
}

func TestPurpose(t *testing.T) {
	for _, s := range []string{"email", "recovery", "signup"} {
		p, ok := ParseOTPPurpose(s)
		assert.True(t, ok)
		assert.Equal(t, Purpose(s), p)
	}
	_, ok := ParseOTPPurpose("magic")
	assert.False(t, ok)
	_, ok = ParseOTPPurpose("continuation")
	assert.False(t, ok)

	assert.True(t, PurposeEmail.ConfirmsEmail())
	assert.True(t, PurposeSignup.ConfirmsEmail())
	assert.False(t, PurposeRecovery.ConfirmsEmail())
	assert.False(t, PurposeContinuation.ConfirmsEmail())
}
