package sessions

import (
	"context"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.JTI] = s
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, jti string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[jti]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !s.ExpiresAt.After(r.now()) {
		r.mu.Lock()
		delete(r.sessions, jti)
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, jti)
	return nil
}
