package profile

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of Repository.
type MockRepository struct {
	mock.Mock
}

var _ Repository = (*MockRepository)(nil)

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Profile), args.Error(1)
}

func (m *MockRepository) GetByUsername(ctx context.Context, username string) (Profile, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(Profile), args.Error(1)
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(Profile), args.Error(1)
}

func (m *MockRepository) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) (Profile, error) {
	args := m.Called(ctx, id, verified)
	return args.Get(0).(Profile), args.Error(1)
}

func (m *MockRepository) Insert(ctx context.Context, p Profile) (Profile, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(Profile), args.Error(1)
}
