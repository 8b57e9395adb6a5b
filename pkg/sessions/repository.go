package sessions

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

// Repository stores live sessions until they expire or are revoked.
type Repository interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, jti string) (*Session, error)
	Delete(ctx context.Context, jti string) error
}
