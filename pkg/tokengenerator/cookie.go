package tokengenerator

import (
	"net/http"
	"time"
)

// CookieName matches the cookie jwtauth.TokenFromCookie reads.
const CookieName = "jwt"

// CookieSetter writes the session token cookie.
type CookieSetter struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieSetter(secure bool, sameSite http.SameSite) *CookieSetter {
	return &CookieSetter{Path: "/", Secure: secure, SameSite: sameSite}
}

func (c *CookieSetter) SetCookie(w http.ResponseWriter, token string, expire time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Path:     c.Path,
		Value:    token,
		Expires:  expire,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *CookieSetter) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
