// Package sessions tracks issued application tokens so logout can revoke them
// before they expire.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateSession registers a freshly issued token.
func (s *Service) CreateSession(ctx context.Context, session Session) error {
	if session.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if session.JTI == "" {
		return fmt.Errorf("jti is required")
	}
	if !session.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("expires_at must be in the future")
	}
	return s.repo.Create(ctx, session)
}

// IsValid reports whether the token with this JWT ID is still live.
func (s *Service) IsValid(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := s.repo.Get(ctx, jti)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) GetSession(ctx context.Context, jti string) (*Session, error) {
	return s.repo.Get(ctx, jti)
}

// Revoke is idempotent.
func (s *Service) Revoke(ctx context.Context, jti string) error {
	return s.repo.Delete(ctx, jti)
}
