package pkce

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, verifier.Value, 43)
	assert.True(t, isValidCodeVerifier(verifier.Value))

	other, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, verifier.Value, other.Value)
}

func TestChallengeKnownVector(t *testing.T) {
	// RFC 7636 appendix B
	cv := &CodeVerifier{Value: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"}
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", cv.Challenge())
}

func TestVerify(t *testing.T) {
	cv, err := GenerateCodeVerifier()
	require.NoError(t, err)

	tests := []struct {
		name      string
		verifier  string
		challenge string
		method    ChallengeMethod
		wantErr   bool
	}{
		{"S256Match", cv.Value, cv.Challenge(), ChallengeS256, false},
		{"S256UpperCaseMethod", cv.Value, cv.Challenge(), "S256", false},
		{"PlainMatch", cv.Value, cv.Value, ChallengePlain, false},
		{"Mismatch", cv.Value, "wrong", ChallengeS256, true},
		{"Empty", "", cv.Challenge(), ChallengeS256, true},
		{"TooShort", "abc", "abc", ChallengePlain, true},
		{"BadChars", strings.Repeat("!", 43), "x", ChallengePlain, true},
		{"UnknownMethod", cv.Value, cv.Value, "md5", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.verifier, tt.challenge, tt.method)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCookieRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "the-verifier", true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/auth/confirm?code=x", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, "the-verifier", FromRequest(req))

	assert.Empty(t, FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))

	rec = httptest.NewRecorder()
	ClearCookie(rec, false)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}
