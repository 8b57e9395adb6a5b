// Package client is a Go SDK for the account API. A Client holds the session
// token of one signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pranavgnn/moodmeter/pkg/availability"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned by calls that need a session token when
// none is held.
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status            int
	Message           string `json:"error"`
	Code              string `json:"errorCode"`
	Field             string `json:"field"`
	NeedsVerification bool   `json:"needsVerification"`
	Email             string `json:"email"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type SessionInfo struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type availabilityResponse struct {
	Field        string                    `json:"field"`
	Value        string                    `json:"value"`
	Availability availability.Availability `json:"availability"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token *oauth2.Token
	user  User
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the held session token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return ""
	}
	return c.token.AccessToken
}

func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.Valid()
}

// User returns the user of the held session.
func (c *Client) User() (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, c.token.Valid()
}

func (c *Client) setSession(res LoginResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &oauth2.Token{AccessToken: res.Token, TokenType: "Bearer", Expiry: res.ExpiresAt}
	c.user = res.User
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	c.user = User{}
}

// Login signs in and keeps the returned session token. A failed login leaves
// any previously held token untouched.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, c.httpClient, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	c.setSession(res)
	return &res, nil
}

// Logout revokes the held session. The token is dropped even when the server
// call fails.
func (c *Client) Logout(ctx context.Context) error {
	hc, err := c.authed(ctx)
	if err != nil {
		return err
	}
	defer c.clearSession()
	return c.do(ctx, hc, http.MethodPost, "/api/logout", nil, nil)
}

// Session fetches the server's view of the held session. A 401 drops the
// token.
func (c *Client) Session(ctx context.Context) (*SessionInfo, error) {
	hc, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var info SessionInfo
	if err := c.do(ctx, hc, http.MethodGet, "/api/session", nil, &info); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.clearSession()
		}
		return nil, err
	}
	return &info, nil
}

// Signup creates an account and returns the server's message.
func (c *Client) Signup(ctx context.Context, username, email, password string) (string, error) {
	var res messageResponse
	err := c.do(ctx, c.httpClient, http.MethodPost, "/api/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &res)
	return res.Message, err
}

func (c *Client) ResendConfirmation(ctx context.Context, email string) (string, error) {
	var res messageResponse
	err := c.do(ctx, c.httpClient, http.MethodPost, "/api/login/resend", map[string]string{"email": email}, &res)
	return res.Message, err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var res messageResponse
	err := c.do(ctx, c.httpClient, http.MethodPost, "/api/password/forgot", map[string]string{"email": email}, &res)
	return res.Message, err
}

// CheckAvailability asks whether value is free. Any failure is Indeterminate.
func (c *Client) CheckAvailability(ctx context.Context, field availability.Field, value string) availability.Availability {
	q := url.Values{}
	q.Set(string(field), value)
	var res availabilityResponse
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/api/availability?"+q.Encode(), nil, &res); err != nil {
		return availability.Indeterminate
	}
	return res.Availability
}

// authed returns an HTTP client that sends the held token as a bearer
// credential.
func (c *Client) authed(ctx context.Context) (*http.Client, error) {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()
	if !tok.Valid() {
		return nil, ErrNotAuthenticated
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
