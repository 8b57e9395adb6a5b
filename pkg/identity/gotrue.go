package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/metrics"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
)

// GoTrueClient talks to a GoTrue compatible auth server over its REST API.
// Calls are never retried. Repeated 5xx answers or transport failures open a
// circuit breaker, after which calls fail fast with CodeProviderUnavailable.
type GoTrueClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

type GoTrueOption func(*goTrueOptions)

type goTrueOptions struct {
	apiKey             string
	httpClient         *http.Client
	timeout            time.Duration
	breakerMaxFailures uint32
	breakerOpenTimeout time.Duration
}

func WithAPIKey(key string) GoTrueOption {
	return func(o *goTrueOptions) { o.apiKey = key }
}

func WithHTTPClient(c *http.Client) GoTrueOption {
	return func(o *goTrueOptions) { o.httpClient = c }
}

func WithTimeout(d time.Duration) GoTrueOption {
	return func(o *goTrueOptions) { o.timeout = d }
}

// WithBreaker sets the consecutive failure count that opens the breaker and
// how long it stays open.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) GoTrueOption {
	return func(o *goTrueOptions) {
		o.breakerMaxFailures = maxFailures
		o.breakerOpenTimeout = openTimeout
	}
}

func NewGoTrueClient(baseURL string, opts ...GoTrueOption) *GoTrueClient {
	o := goTrueOptions{
		timeout:            10 * time.Second,
		breakerMaxFailures: 5,
		breakerOpenTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	const name = "identity-provider"
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     o.breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.breakerMaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Identity provider circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.ProviderBreakerState.WithLabelValues(name).Set(metrics.BreakerStateValue(to))
		},
	})

	return &GoTrueClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     o.apiKey,
		httpClient: o.httpClient,
		breaker:    breaker,
	}
}

type userResponse struct {
	ID               uuid.UUID      `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// signup answers with a bare user when confirmation is pending, or with a
// session when the server auto-confirms.
type signupResponse struct {
	tokenResponse
	userResponse
}

type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (u userResponse) toUser() User {
	return User{
		ID:               u.ID,
		Email:            u.Email,
		Metadata:         u.UserMetadata,
		EmailConfirmedAt: u.EmailConfirmedAt,
	}
}

func (t tokenResponse) toSession() *Session {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &Session{Token: tok, User: t.User.toUser()}
}

func (c *GoTrueClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error) {
	var resp tokenResponse
	body := map[string]string{"auth_code": code, "code_verifier": codeVerifier}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (c *GoTrueClient) VerifyOTP(ctx context.Context, tokenHash string, purpose Purpose) (*Session, error) {
	var resp tokenResponse
	body := map[string]string{"type": string(purpose), "token_hash": tokenHash}
	if err := c.do(ctx, http.MethodPost, "/verify", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

func (c *GoTrueClient) SignUp(ctx context.Context, params SignUpParams) (User, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data":     params.Metadata,
	}
	if params.CodeChallenge != "" {
		body["code_challenge"] = params.CodeChallenge
		body["code_challenge_method"] = "s256"
	}
	path := "/signup"
	if params.RedirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(params.RedirectTo)
	}

	var resp signupResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return User{}, err
	}
	if resp.tokenResponse.User.ID != uuid.Nil {
		return resp.tokenResponse.User.toUser(), nil
	}
	return resp.userResponse.toUser(), nil
}

func (c *GoTrueClient) Resend(ctx context.Context, email string, purpose Purpose) error {
	body := map[string]string{"type": string(purpose), "email": email}
	return c.do(ctx, http.MethodPost, "/resend", "", body, nil)
}

func (c *GoTrueClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

func (c *GoTrueClient) UpdatePassword(ctx context.Context, accessToken, password string) error {
	if accessToken == "" {
		return &Error{Status: http.StatusUnauthorized, Code: CodeBadJWT, Message: "missing session"}
	}
	return c.do(ctx, http.MethodPut, "/user", accessToken, map[string]string{"password": password}, nil)
}

// do sends one request through the breaker and decodes a JSON answer into out.
func (c *GoTrueClient) do(ctx context.Context, method, path, accessToken string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	client := c.httpClient
	if accessToken != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}))
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			return nil, parseError(resp.StatusCode, data)
		}
		return resp, nil
	})
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return perr
		}
		slog.Warn("Identity provider unreachable", "method", method, "path", path, "err", err)
		return &Error{Status: http.StatusServiceUnavailable, Code: CodeProviderUnavailable, Message: "identity provider unavailable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Status: resp.StatusCode, Code: CodeProviderUnavailable, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Code: CodeProviderError, Message: "malformed response", Err: err}
	}
	return nil
}

func parseError(status int, data []byte) *Error {
	e := &Error{Status: status, Code: CodeProviderError, Message: http.StatusText(status)}
	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return e
	}
	switch {
	case body.ErrorCode != "":
		e.Code = body.ErrorCode
	case body.Error != "":
		e.Code = body.Error
	case status == http.StatusTooManyRequests:
		e.Code = CodeOverEmailRateLimit
	}
	for _, msg := range []string{body.Msg, body.Message, body.ErrorDescription} {
		if msg != "" {
			e.Message = msg
			break
		}
	}
	return e
}
