package password

import (
	"net/http"
	"time"

	"github.com/pranavgnn/moodmeter/pkg/identity"
)

const (
	RecoveryCookieName = "__moodmeter_recovery"
	recoveryCookieTTL  = time.Hour
)

// SetRecoveryCookie hands the provider session to the browser for the one
// reset-password submission that follows.
func SetRecoveryCookie(w http.ResponseWriter, session *identity.Session, secure bool) {
	token := session.AccessToken()
	if token == "" {
		return
	}
	maxAge := int(recoveryCookieTTL.Seconds())
	if session.Token != nil && !session.Token.Expiry.IsZero() {
		if left := int(time.Until(session.Token.Expiry).Seconds()); left > 0 && left < maxAge {
			maxAge = left
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RecoveryCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RecoveryToken returns the recovery access token carried by r, or "".
func RecoveryToken(r *http.Request) string {
	c, err := r.Cookie(RecoveryCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func ClearRecoveryCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RecoveryCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
