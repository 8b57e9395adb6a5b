package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// AuthUser is the signed-in user as carried by the session token claims.
type AuthUser struct {
	UserID        string `json:"sub"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	JTI           string `json:"jti,omitempty"`

	UserUUID uuid.UUID `json:"-"`
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", u.UserID),
		slog.String("username", u.Username),
	)
}

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "moodmeter context value " + k.name
}

var AuthUserKey = &contextKey{"AuthUser"}

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware loads the AuthUser from verified jwtauth claims into the
// request context. It must run after jwtauth.Verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || claims == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)
		if err := LoadFromMap(claims, authUser); err != nil {
			slog.Error("failed to parse token claims", "error", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}
		if authUser.UserID == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}
		id, err := uuid.Parse(authUser.UserID)
		if err != nil {
			slog.Warn("failed to parse user ID as UUID", "userId", authUser.UserID, "error", err)
			http.Error(w, "invalid user ID in token", http.StatusUnauthorized)
			return
		}
		authUser.UserUUID = id

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the user stored by AuthUserMiddleware, or nil.
func GetAuthUser(r *http.Request) *AuthUser {
	u, _ := r.Context().Value(AuthUserKey).(*AuthUser)
	return u
}

// RequireVerified rejects users whose email is not verified. It must run
// after AuthUserMiddleware.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetAuthUser(r)
		if u == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !u.EmailVerified {
			slog.Debug("Unverified user on protected resource", "user", u)
			http.Error(w, "Forbidden: email not verified", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
