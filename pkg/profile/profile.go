// Package profile stores the local account record that mirrors an identity
// provider user: username, email and whether the email has been verified.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotFoundCode is the error code reported when a lookup or update matches no row.
const NotFoundCode = "PGRST116"

var (
	// ErrNotFound is returned when no profile matches the query.
	ErrNotFound = errors.New("profile not found")
)

const (
	FieldID       = "id"
	FieldUsername = "username"
	FieldEmail    = "email"
)

// ConflictError is returned by Insert when a uniqueness constraint rejects the row.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("profile %s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a ConflictError on the given field.
// An empty field matches any conflict.
func IsConflict(err error, field string) bool {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return false
	}
	return field == "" || ce.Field == field
}

// Code returns a short store error code for err, or "" if it has none.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundCode
	case IsConflict(err, ""):
		return "23505"
	default:
		return ""
	}
}

// Profile is the local account record. ID equals the identity provider user id.
type Profile struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Repository is the profile store.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Profile, error)
	GetByUsername(ctx context.Context, username string) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)
	// SetEmailVerified updates the verification flag and returns the updated row.
	// It returns ErrNotFound when no profile has the id.
	SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) (Profile, error)
	// Insert creates the profile. Uniqueness violations return *ConflictError.
	Insert(ctx context.Context, p Profile) (Profile, error)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
