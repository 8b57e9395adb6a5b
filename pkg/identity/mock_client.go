package identity

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of Client.
type MockClient struct {
	mock.Mock
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error) {
	args := m.Called(ctx, code, codeVerifier)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *MockClient) VerifyOTP(ctx context.Context, tokenHash string, purpose Purpose) (*Session, error) {
	args := m.Called(ctx, tokenHash, purpose)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *MockClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *MockClient) SignUp(ctx context.Context, params SignUpParams) (User, error) {
	args := m.Called(ctx, params)
	u, _ := args.Get(0).(User)
	return u, args.Error(1)
}

func (m *MockClient) Resend(ctx context.Context, email string, purpose Purpose) error {
	return m.Called(ctx, email, purpose).Error(0)
}

func (m *MockClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return m.Called(ctx, email, redirectTo).Error(0)
}

func (m *MockClient) UpdatePassword(ctx context.Context, accessToken, password string) error {
	return m.Called(ctx, accessToken, password).Error(0)
}
