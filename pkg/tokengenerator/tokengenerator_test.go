package tokengenerator

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	g := NewJwtTokenGenerator("test-secret", "moodmeter", "")

	tokenStr, issued, err := g.GenerateToken("user-1", time.Hour, UserClaims{Username: "ann", Email: "ann@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt.Time, 5*time.Second)

	claims, err := g.ParseToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ann", claims.Username)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestParseToken_Rejects(t *testing.T) {
	g := NewJwtTokenGenerator("test-secret", "moodmeter", "moodmeter-web")
	tokenStr, _, err := g.GenerateToken("user-1", time.Hour, UserClaims{Username: "ann"})
	require.NoError(t, err)

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := NewJwtTokenGenerator("other", "moodmeter", "moodmeter-web").ParseToken(tokenStr)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongAudience", func(t *testing.T) {
		_, err := NewJwtTokenGenerator("test-secret", "moodmeter", "other").ParseToken(tokenStr)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		later := NewJwtTokenGenerator("test-secret", "moodmeter", "moodmeter-web")
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ParseToken(tokenStr)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := g.ParseToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenAcceptedByJwtauth(t *testing.T) {
	g := NewJwtTokenGenerator("test-secret", "moodmeter", "")
	tokenStr, _, err := g.GenerateToken("user-1", time.Hour, UserClaims{Username: "ann"})
	require.NoError(t, err)

	tokenAuth := jwtauth.New("HS256", []byte("test-secret"), nil)
	tok, err := jwtauth.VerifyToken(tokenAuth, tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "user-1", tok.Subject())
	username, ok := tok.Get("username")
	require.True(t, ok)
	assert.Equal(t, "ann", username)
}

func TestCookieSetter(t *testing.T) {
	c := NewCookieSetter(true, http.SameSiteStrictMode)
	rec := httptest.NewRecorder()
	c.SetCookie(rec, "tok", time.Now().Add(time.Hour))
	c.ClearCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
