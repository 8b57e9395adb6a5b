package verification

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/notification"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func confirmedSession(id uuid.UUID, email, username string) *identity.Session {
	now := time.Now()
	return &identity.Session{
		User: identity.User{
			ID:               id,
			Email:            email,
			Metadata:         map[string]any{"username": username},
			EmailConfirmedAt: &now,
		},
	}
}

func linkParams(t *testing.T, link string) Params {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	return Params{Code: q.Get("code"), TokenHash: q.Get("token_hash"), Type: q.Get("type"), Next: q.Get("next")}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want Request
	}{
		{"ErrorWins", Params{Error: "access_denied", ErrorCode: "otp_expired", ErrorDescription: "Email link is invalid or has expired", Code: "c", TokenHash: "h", Type: "email"},
			ErrorReport{Code: "otp_expired", Description: "Email link is invalid or has expired"}},
		{"ErrorWithoutCode", Params{Error: "access_denied"}, ErrorReport{Code: "access_denied", Description: "access_denied"}},
		{"CodeBeforeToken", Params{Code: "c", TokenHash: "h", Type: "email", Next: "/dashboard"}, CodeFlow{Code: "c", Next: "/dashboard"}},
		{"Token", Params{TokenHash: "h", Type: "recovery", Next: "/reset-password"}, OtpFlow{TokenHash: "h", Type: "recovery", Next: "/reset-password"}},
		{"TokenWithoutType", Params{TokenHash: "h"}, NoMaterial{}},
		{"TypeWithoutToken", Params{Type: "email"}, NoMaterial{}},
		{"Empty", Params{}, NoMaterial{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.p))
		})
	}
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/", SafeNext(""))
	assert.Equal(t, "/reset-password", SafeNext("/reset-password"))
	assert.Equal(t, "/dashboard?tab=week", SafeNext("/dashboard?tab=week"))
	assert.Equal(t, "/", SafeNext("https://evil.example"))
	assert.Equal(t, "/", SafeNext("//evil.example"))
	assert.Equal(t, "/", SafeNext("/\\evil.example"))
	assert.Equal(t, "/", SafeNext("dashboard"))
	assert.Equal(t, "/", SafeNext("/\t/evil.example"))
	assert.Equal(t, "/", SafeNext("/\t\\evil.example"))
	assert.Equal(t, "/", SafeNext("/\n/evil.example"))
	assert.Equal(t, "/", SafeNext("/\x7f/evil.example"))
	assert.Equal(t, "/", SafeNext("/%2F/evil.example"))
}

func TestVerify_ErrorFragmentSkipsProvider(t *testing.T) {
	client := new(identity.MockClient)
	d := NewDispatcher(client, nil)

	out := d.Verify(context.Background(), Params{Error: "access_denied", ErrorCode: "otp_expired", ErrorDescription: "Email link is invalid or has expired", Code: "abc"})
	assert.False(t, out.Success)
	assert.Equal(t, "otp_expired", out.ErrorCode)
	assert.Equal(t, "Email link is invalid or has expired", out.Reason)
	client.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_NoMaterial(t *testing.T) {
	client := new(identity.MockClient)
	out := NewDispatcher(client, nil).Verify(context.Background(), Params{Next: "/x"})
	assert.False(t, out.Success)
	assert.Equal(t, ReasonNoMaterial, out.Reason)
	assert.Equal(t, CodeNoMaterial, out.ErrorCode)
	assert.Empty(t, client.Calls)
}

func TestVerify_UnknownTypeIsInputError(t *testing.T) {
	client := new(identity.MockClient)
	out := NewDispatcher(client, nil).Verify(context.Background(), Params{TokenHash: "abc", Type: "magic"})
	assert.False(t, out.Success)
	assert.Equal(t, ReasonVerificationFailed, out.Reason)
	assert.Equal(t, CodeInvalidType, out.ErrorCode)
	assert.Empty(t, client.Calls)
}

func TestVerify_CodeFlow(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("SuccessThenReuseFails", func(t *testing.T) {
		client := new(identity.MockClient)
		session := &identity.Session{User: identity.User{ID: id, Email: "ann@example.com"}}
		client.On("ExchangeCode", mock.Anything, "abc", "verifier").Return(session, nil).Once()
		client.On("ExchangeCode", mock.Anything, "abc", "verifier").
			Return(nil, &identity.Error{Status: 404, Code: identity.CodeFlowStateNotFound}).Once()

		d := NewDispatcher(client, nil)
		first := d.Verify(ctx, Params{Code: "abc", CodeVerifier: "verifier", Next: "/dashboard"})
		require.True(t, first.Success)
		assert.Equal(t, identity.PurposeContinuation, first.Purpose)
		assert.Equal(t, "/dashboard", first.Next)
		assert.Same(t, session, first.Session)

		second := d.Verify(ctx, Params{Code: "abc", CodeVerifier: "verifier"})
		assert.False(t, second.Success)
		assert.Equal(t, ReasonExchangeFailed, second.Reason)
		assert.Equal(t, identity.CodeFlowStateNotFound, second.ErrorCode)
		client.AssertNumberOfCalls(t, "ExchangeCode", 2)
	})

	t.Run("ConfirmedUserIsReconciled", func(t *testing.T) {
		client := new(identity.MockClient)
		repo := new(profile.MockRepository)
		client.On("ExchangeCode", mock.Anything, "abc", "").Return(confirmedSession(id, "ann@example.com", "ann"), nil)
		repo.On("SetEmailVerified", mock.Anything, id, true).Return(profile.Profile{ID: id, EmailVerified: true}, nil).Once()

		out := NewDispatcher(client, reconcile.New(repo)).Verify(ctx, Params{Code: "abc"})
		assert.True(t, out.Success)
		assert.Equal(t, identity.PurposeContinuation, out.Purpose)
		assert.Equal(t, "/", out.Next)
		repo.AssertExpectations(t)
	})

	t.Run("UnconfirmedUserIsNotReconciled", func(t *testing.T) {
		client := new(identity.MockClient)
		repo := new(profile.MockRepository)
		client.On("ExchangeCode", mock.Anything, "abc", "").Return(&identity.Session{User: identity.User{ID: id}}, nil)

		out := NewDispatcher(client, reconcile.New(repo)).Verify(ctx, Params{Code: "abc"})
		assert.True(t, out.Success)
		assert.Empty(t, repo.Calls)
	})
}

func TestVerify_OtpEmailWithMissingProfileInsertsAndSucceeds(t *testing.T) {
	client := new(identity.MockClient)
	repo := new(profile.MockRepository)
	id := uuid.New()

	client.On("VerifyOTP", mock.Anything, "abc", identity.PurposeEmail).Return(confirmedSession(id, "ann@example.com", "ann"), nil).Once()
	repo.On("SetEmailVerified", mock.Anything, id, true).Return(profile.Profile{}, profile.ErrNotFound).Once()
	repo.On("Insert", mock.Anything, profile.Profile{ID: id, Username: "ann", Email: "ann@example.com", EmailVerified: true}).
		Return(profile.Profile{ID: id, EmailVerified: true}, nil).Once()

	out := NewDispatcher(client, reconcile.New(repo)).Verify(context.Background(), Params{TokenHash: "abc", Type: "email"})
	require.True(t, out.Success)
	assert.Equal(t, identity.PurposeEmail, out.Purpose)
	assert.Nil(t, out.Warning)
	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestVerify_ReconcileFailureIsSoft(t *testing.T) {
	client := new(identity.MockClient)
	repo := new(profile.MockRepository)
	id := uuid.New()

	client.On("VerifyOTP", mock.Anything, "abc", identity.PurposeSignup).Return(confirmedSession(id, "ann@example.com", "ann"), nil)
	repo.On("SetEmailVerified", mock.Anything, id, true).Return(profile.Profile{}, errors.New("connection refused"))

	out := NewDispatcher(client, reconcile.New(repo)).Verify(context.Background(), Params{TokenHash: "abc", Type: "signup", Next: "/welcome"})
	require.True(t, out.Success)
	assert.Equal(t, "/welcome", out.Next)
	require.NotNil(t, out.Warning)
	assert.Equal(t, reconcile.WarningStoreError, out.Warning.Kind)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestVerify_RecoveryDoesNotReconcile(t *testing.T) {
	client := new(identity.MockClient)
	repo := new(profile.MockRepository)
	id := uuid.New()

	client.On("VerifyOTP", mock.Anything, "rec", identity.PurposeRecovery).Return(confirmedSession(id, "ann@example.com", "ann"), nil)

	out := NewDispatcher(client, reconcile.New(repo)).Verify(context.Background(), Params{TokenHash: "rec", Type: "recovery", Next: "/reset-password"})
	require.True(t, out.Success)
	assert.Equal(t, identity.PurposeRecovery, out.Purpose)
	assert.Equal(t, "/reset-password", out.Next)
	assert.Empty(t, repo.Calls)
}

func TestVerify_OtpFailure(t *testing.T) {
	client := new(identity.MockClient)
	client.On("VerifyOTP", mock.Anything, "used", identity.PurposeEmail).
		Return(nil, &identity.Error{Status: 403, Code: identity.CodeOTPExpired})

	out := NewDispatcher(client, nil).Verify(context.Background(), Params{TokenHash: "used", Type: "email"})
	assert.False(t, out.Success)
	assert.Equal(t, ReasonVerificationFailed, out.Reason)
	assert.Equal(t, identity.CodeOTPExpired, out.ErrorCode)
}

// End to end against the in-memory provider and file store.
func TestVerify_WithMemoryProvider(t *testing.T) {
	ctx := context.Background()
	rec := &notification.RecordingNotifier{}
	provider := identity.NewMemoryProvider(identity.WithNotifier(rec), identity.WithResendSpacing(0))
	repo, err := profile.NewFileRepository(t.TempDir())
	require.NoError(t, err)
	d := NewDispatcher(provider, reconcile.New(repo))

	user, err := provider.SignUp(ctx, identity.SignUpParams{Email: "ann@example.com", Password: "secret1", Metadata: map[string]any{"username": "ann"}})
	require.NoError(t, err)

	sent, ok := rec.Last(notification.ConfirmSignupNotice, "ann@example.com")
	require.True(t, ok)
	params := linkParams(t, sent.Data["Link"])

	out := d.Verify(ctx, params)
	require.True(t, out.Success)

	p, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "ann", p.Username)

	again := d.Verify(ctx, params)
	assert.False(t, again.Success)
}
