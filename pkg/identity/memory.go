package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/notification"
	"github.com/pranavgnn/moodmeter/pkg/pkce"
	"github.com/xlzd/gotp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// MemoryProvider is an in-process identity provider for development and
// tests. Confirmation and recovery links are delivered through a notifier.
// It keeps the provider semantics the account flows rely on: codes and token
// hashes are single-use, unconfirmed accounts cannot sign in, and resends
// are throttled.
type MemoryProvider struct {
	mu       sync.Mutex
	users    map[string]*memoryUser // keyed by normalized email
	codes    map[string]pendingCode
	tokens   map[string]pendingToken
	sessions map[string]uuid.UUID // access token -> user id

	notifier      notification.Notifier
	siteURL       string
	hotp          *gotp.HOTP
	counter       int
	tokenTTL      time.Duration
	sessionTTL    time.Duration
	resendSpacing time.Duration
	now           func() time.Time
}

type memoryUser struct {
	User
	passwordHash []byte
	lastSentAt   time.Time
}

type pendingCode struct {
	userID    uuid.UUID
	challenge string
	expiresAt time.Time
}

type pendingToken struct {
	email     string
	purpose   Purpose
	expiresAt time.Time
}

type MemoryOption func(*MemoryProvider)

func WithNotifier(n notification.Notifier) MemoryOption {
	return func(p *MemoryProvider) { p.notifier = n }
}

func WithSiteURL(u string) MemoryOption {
	return func(p *MemoryProvider) { p.siteURL = strings.TrimRight(u, "/") }
}

func WithTokenTTL(d time.Duration) MemoryOption {
	return func(p *MemoryProvider) { p.tokenTTL = d }
}

// WithResendSpacing sets the minimum time between two mails to one address.
func WithResendSpacing(d time.Duration) MemoryOption {
	return func(p *MemoryProvider) { p.resendSpacing = d }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) { p.now = now }
}

func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		users:         make(map[string]*memoryUser),
		codes:         make(map[string]pendingCode),
		tokens:        make(map[string]pendingToken),
		sessions:      make(map[string]uuid.UUID),
		notifier:      notification.LogNotifier{},
		siteURL:       "http://localhost:4000",
		hotp:          gotp.NewDefaultHOTP(gotp.RandomSecret(32)),
		tokenTTL:      24 * time.Hour,
		sessionTTL:    time.Hour,
		resendSpacing: 60 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MemoryProvider) SignUp(ctx context.Context, params SignUpParams) (User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if len(params.Password) < 6 {
		return User{}, &Error{Status: http.StatusUnprocessableEntity, Code: CodeWeakPassword, Message: "Password should be at least 6 characters."}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.users[email]; exists {
		return User{}, &Error{Status: http.StatusUnprocessableEntity, Code: CodeUserAlreadyExists, Message: "User already registered"}
	}

	u := &memoryUser{
		User: User{
			ID:       uuid.New(),
			Email:    email,
			Metadata: params.Metadata,
		},
		passwordHash: hash,
	}
	link, err := p.confirmationLinkLocked(u, params.CodeChallenge, params.RedirectTo)
	if err != nil {
		return User{}, err
	}
	p.users[email] = u
	p.sendLocked(u, notification.ConfirmSignupNotice, link)
	return u.User, nil
}

func (p *MemoryProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.codes[code]
	if !ok {
		return nil, &Error{Status: http.StatusNotFound, Code: CodeFlowStateNotFound, Message: "invalid flow state, no valid flow state found"}
	}
	delete(p.codes, code)

	if p.now().After(pending.expiresAt) {
		return nil, &Error{Status: http.StatusNotFound, Code: CodeFlowStateNotFound, Message: "invalid flow state, flow state has expired"}
	}
	if pending.challenge != "" {
		if err := pkce.Verify(codeVerifier, pending.challenge, pkce.ChallengeS256); err != nil {
			return nil, &Error{Status: http.StatusBadRequest, Code: CodeBadCodeVerifier, Message: "code challenge does not match previously saved code verifier", Err: err}
		}
	}

	u := p.userByIDLocked(pending.userID)
	if u == nil {
		return nil, &Error{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	p.confirmLocked(u)
	return p.issueSessionLocked(u), nil
}

func (p *MemoryProvider) VerifyOTP(ctx context.Context, tokenHash string, purpose Purpose) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	invalid := &Error{Status: http.StatusForbidden, Code: CodeOTPExpired, Message: "Email link is invalid or has expired"}

	pending, ok := p.tokens[tokenHash]
	if !ok {
		return nil, invalid
	}
	// email and signup are two spellings of the same confirmation
	if (pending.purpose == PurposeRecovery) != (purpose == PurposeRecovery) {
		return nil, invalid
	}
	delete(p.tokens, tokenHash)

	if p.now().After(pending.expiresAt) {
		return nil, invalid
	}
	u, ok := p.users[pending.email]
	if !ok {
		return nil, invalid
	}
	if purpose.ConfirmsEmail() {
		p.confirmLocked(u)
	}
	return p.issueSessionLocked(u), nil
}

func (p *MemoryProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	invalid := &Error{Status: http.StatusBadRequest, Code: CodeInvalidCredentials, Message: "Invalid login credentials"}
	u, ok := p.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, invalid
	}
	if u.EmailConfirmedAt == nil {
		return nil, &Error{Status: http.StatusBadRequest, Code: CodeEmailNotConfirmed, Message: "Email not confirmed"}
	}
	return p.issueSessionLocked(u), nil
}

func (p *MemoryProvider) Resend(ctx context.Context, email string, purpose Purpose) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok || u.EmailConfirmedAt != nil {
		// Nothing to resend; the answer does not reveal which.
		return nil
	}
	if err := p.throttleLocked(u); err != nil {
		return err
	}
	link, err := p.confirmationLinkLocked(u, "", "")
	if err != nil {
		return err
	}
	p.sendLocked(u, notification.ConfirmSignupNotice, link)
	return nil
}

func (p *MemoryProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil
	}
	if err := p.throttleLocked(u); err != nil {
		return err
	}
	tokenHash := p.newTokenHashLocked(u.Email, PurposeRecovery)
	link, err := withQuery(p.orDefault(redirectTo), url.Values{
		"token_hash": {tokenHash},
		"type":       {string(PurposeRecovery)},
	})
	if err != nil {
		return err
	}
	p.sendLocked(u, notification.RecoveryNotice, link)
	return nil
}

func (p *MemoryProvider) UpdatePassword(ctx context.Context, accessToken, password string) error {
	if len(password) < 6 {
		return &Error{Status: http.StatusUnprocessableEntity, Code: CodeWeakPassword, Message: "Password should be at least 6 characters."}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.sessions[accessToken]
	if !ok {
		return &Error{Status: http.StatusUnauthorized, Code: CodeBadJWT, Message: "invalid JWT"}
	}
	u := p.userByIDLocked(userID)
	if u == nil {
		return &Error{Status: http.StatusUnauthorized, Code: CodeBadJWT, Message: "invalid JWT"}
	}
	u.passwordHash = hash
	return nil
}

// ConfirmEmail marks an account confirmed without a token, the way an
// operator would from the provider's admin console.
func (p *MemoryProvider) ConfirmEmail(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return false
	}
	p.confirmLocked(u)
	return true
}

func (p *MemoryProvider) confirmationLinkLocked(u *memoryUser, codeChallenge, redirectTo string) (string, error) {
	base := p.orDefault(redirectTo)
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	if codeChallenge != "" {
		code := uuid.NewString()
		p.codes[code] = pendingCode{userID: u.ID, challenge: codeChallenge, expiresAt: p.now().Add(p.tokenTTL)}
		return withQuery(base, url.Values{"code": {code}})
	}
	tokenHash := p.newTokenHashLocked(u.Email, PurposeEmail)
	return withQuery(base, url.Values{"token_hash": {tokenHash}, "type": {string(PurposeEmail)}})
}

// newTokenHashLocked derives a token hash from the address and a fresh HOTP
// value, the same way hosted providers hash emailed one-time codes.
func (p *MemoryProvider) newTokenHashLocked(email string, purpose Purpose) string {
	p.counter++
	otp := p.hotp.At(p.counter)
	tokenHash := fmt.Sprintf("%x", sha256.Sum224([]byte(email+otp+uuid.NewString())))
	p.tokens[tokenHash] = pendingToken{email: email, purpose: purpose, expiresAt: p.now().Add(p.tokenTTL)}
	return tokenHash
}

func (p *MemoryProvider) throttleLocked(u *memoryUser) error {
	if !u.lastSentAt.IsZero() && p.now().Sub(u.lastSentAt) < p.resendSpacing {
		return &Error{Status: http.StatusTooManyRequests, Code: CodeOverEmailRateLimit, Message: "For security purposes, you can only request this after 60 seconds."}
	}
	return nil
}

func (p *MemoryProvider) sendLocked(u *memoryUser, noticeType notification.NoticeType, link string) {
	u.lastSentAt = p.now()
	if err := p.notifier.Send(noticeType, notification.NotificationData{
		To:   u.Email,
		Data: map[string]string{"Link": link},
	}); err != nil {
		slog.Error("Failed to send account email", "type", noticeType, "email", u.Email, "err", err)
	}
}

func (p *MemoryProvider) confirmLocked(u *memoryUser) {
	if u.EmailConfirmedAt == nil {
		now := p.now().UTC()
		u.EmailConfirmedAt = &now
	}
}

func (p *MemoryProvider) issueSessionLocked(u *memoryUser) *Session {
	access := randomToken()
	p.sessions[access] = u.ID
	return &Session{
		Token: &oauth2.Token{
			AccessToken:  access,
			TokenType:    "bearer",
			RefreshToken: randomToken(),
			Expiry:       p.now().Add(p.sessionTTL),
		},
		User: u.User,
	}
}

func (p *MemoryProvider) userByIDLocked(id uuid.UUID) *memoryUser {
	for _, u := range p.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (p *MemoryProvider) orDefault(redirectTo string) string {
	if redirectTo != "" {
		return redirectTo
	}
	return p.siteURL + "/auth/confirm"
}

func withQuery(base string, extra url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
