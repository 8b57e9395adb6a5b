// Package pkce implements RFC 7636 code verifiers for the authorization-code
// confirmation flow. The verifier lives in an HttpOnly cookie on the browser
// that started signup, so only that browser can exchange the emailed code.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChallengeMethod represents the PKCE challenge method
type ChallengeMethod string

const (
	ChallengePlain ChallengeMethod = "plain"
	ChallengeS256  ChallengeMethod = "s256"
)

const (
	CookieName = "__moodmeter_pkce"
	// Confirmation mails can sit unread for a while.
	CookieTTL = 24 * time.Hour
)

// CodeVerifier represents a PKCE code verifier
type CodeVerifier struct {
	Value string
}

// GenerateCodeVerifier generates a cryptographically random code verifier
// of 43 characters.
func GenerateCodeVerifier() (*CodeVerifier, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return &CodeVerifier{Value: base64.RawURLEncoding.EncodeToString(b)}, nil
}

// Challenge returns the S256 challenge for the verifier.
func (cv *CodeVerifier) Challenge() string {
	hash := sha256.Sum256([]byte(cv.Value))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// Verify checks that verifier matches challenge under method.
func Verify(verifier, challenge string, method ChallengeMethod) error {
	if verifier == "" {
		return fmt.Errorf("code verifier cannot be empty")
	}
	if len(verifier) < 43 || len(verifier) > 128 {
		return fmt.Errorf("code verifier must be between 43 and 128 characters")
	}
	if !isValidCodeVerifier(verifier) {
		return fmt.Errorf("code verifier contains invalid characters")
	}

	var expected string
	switch ChallengeMethod(strings.ToLower(string(method))) {
	case ChallengePlain:
		expected = verifier
	case ChallengeS256:
		expected = (&CodeVerifier{Value: verifier}).Challenge()
	default:
		return fmt.Errorf("unsupported challenge method: %s", method)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) != 1 {
		return fmt.Errorf("code verifier does not match challenge")
	}
	return nil
}

func isValidCodeVerifier(verifier string) bool {
	const allowedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	for _, char := range verifier {
		if !strings.ContainsRune(allowedChars, char) {
			return false
		}
	}
	return true
}

// SetCookie stores the verifier on the response.
func SetCookie(w http.ResponseWriter, verifier string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    verifier,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(CookieTTL.Seconds()),
	})
}

// FromRequest returns the stored verifier, or "" when absent.
func FromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearCookie removes the verifier once it has been used.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
