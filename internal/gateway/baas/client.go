// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package baas implements the authentication gateway against a hosted
// GoTrue-compatible auth API.
//
// Requests carry the project's anonymous key in the apikey header. Calls that
// act on the signed-in user add the session's access token as a bearer token.
// The session is persisted through a SessionStore so a later run can restore
// it. Idempotent calls are retried with exponential backoff on server errors
// and transport failures; other calls are retried only when the connection
// could not be made. 4xx responses are returned immediately as
// *gateway.AuthError.
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/savika/savika/internal/credential"
	"github.com/savika/savika/internal/gateway"
)

const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	// URL is the project base URL, e.g. https://xyz.supabase.co.
	URL string
	// AnonKey is the public anonymous API key.
	AnonKey string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts uint64
	// RetryBaseDelay is the first backoff delay.
	RetryBaseDelay time.Duration
}

// DefaultConfig returns the client defaults without URL or key.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		RetryAttempts:  2,
		RetryBaseDelay: 200 * time.Millisecond,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionStore sets where the session is persisted.
func WithSessionStore(s SessionStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is a gateway.Gateway backed by the provider's HTTP API.
type Client struct {
	*gateway.Hub

	base    *url.URL
	cfg     Config
	http    *http.Client
	store   SessionStore
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	session *Session
}

var _ gateway.Gateway = (*Client)(nil)
var _ gateway.RecoveryVerifier = (*Client)(nil)

// New creates a Client. URL and AnonKey are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, oops.Code("GATEWAY_CONFIG_INVALID").Hint("set gateway.url").Errorf("provider url is required")
	}
	if cfg.AnonKey == "" {
		return nil, oops.Code("GATEWAY_CONFIG_INVALID").Hint("set gateway.anon_key").Errorf("provider anon key is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("GATEWAY_CONFIG_INVALID").With("url", cfg.URL).Errorf("provider url must be absolute")
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaults.RetryBaseDelay
	}

	c := &Client{
		base:   base,
		cfg:    cfg,
		store:  &MemoryStore{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Hub = gateway.NewHub(gateway.WithHubLogger(c.logger))
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	return c, nil
}

// Restore loads a stored session and makes it current without emitting an
// event. It returns nil when no usable session is stored.
func (c *Client) Restore(ctx context.Context) (*gateway.User, error) {
	s, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	if s.Expired(c.now()) {
		c.logger.Info("stored session expired", "user_id", s.User.ID)
		if err := c.store.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	user := s.User
	return &user, nil
}

// CurrentUser returns the signed-in user, if any.
func (c *Client) CurrentUser() (*gateway.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, false
	}
	user := c.session.User
	return &user, true
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*gateway.User, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, "",
		passwordGrantRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, oops.Code("BAAS_SIGN_IN_FAILED").Wrap(err)
	}
	user, err := c.startSession(ctx, resp, gateway.EventSignedIn)
	if err != nil {
		return nil, oops.Code("BAAS_SIGN_IN_FAILED").Wrap(err)
	}
	return user, nil
}

// SignUp creates an account. When the provider requires email confirmation
// no session is issued.
func (c *Client) SignUp(ctx context.Context, email, password string, attrs gateway.ProfileAttributes) (*gateway.SignUpResult, error) {
	req := signUpRequest{Email: email, Password: password}
	if attrs.FullName != "" {
		req.Data = map[string]any{"full_name": attrs.FullName}
	}
	var resp signUpResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, "", req, &resp); err != nil {
		return nil, oops.Code("BAAS_SIGN_UP_FAILED").Wrap(err)
	}

	if resp.AccessToken == "" {
		user := resp.userPayload.toUser()
		if resp.tokenResponse.User != nil {
			user = resp.tokenResponse.User.toUser()
		}
		if user.Email == "" {
			user.Email = credential.NormalizeEmail(email)
		}
		return &gateway.SignUpResult{SessionIssued: false, Email: user.Email, User: &user}, nil
	}

	user, err := c.startSession(ctx, resp.tokenResponse, gateway.EventSignedIn)
	if err != nil {
		return nil, oops.Code("BAAS_SIGN_UP_FAILED").Wrap(err)
	}
	return &gateway.SignUpResult{SessionIssued: true, Email: user.Email, User: user}, nil
}

// RequestPasswordRecovery asks the provider to email a recovery link that
// leads back to redirectTo.
func (c *Client) RequestPasswordRecovery(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/recover", query, "", recoverRequest{Email: email}, nil); err != nil {
		return oops.Code("BAAS_RECOVER_FAILED").Wrap(err)
	}
	return nil
}

// VerifyRecovery exchanges the emailed recovery code for a session and emits
// gateway.EventPasswordRecovery.
func (c *Client) VerifyRecovery(ctx context.Context, email, token string) error {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/verify", nil, "",
		verifyRequest{Type: "recovery", Email: email, Token: token}, &resp)
	if err != nil {
		return oops.Code("BAAS_VERIFY_FAILED").Wrap(err)
	}
	if _, err := c.startSession(ctx, resp, gateway.EventPasswordRecovery); err != nil {
		return oops.Code("BAAS_VERIFY_FAILED").Wrap(err)
	}
	return nil
}

// UpdatePassword sets a new password for the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	token, ok := c.accessToken()
	if !ok {
		return &gateway.AuthError{Status: http.StatusUnauthorized, Code: gateway.CodeSessionMissing, Message: "Auth session missing"}
	}
	var resp userPayload
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil, token, updateUserRequest{Password: newPassword}, &resp); err != nil {
		return oops.Code("BAAS_UPDATE_PASSWORD_FAILED").Wrap(err)
	}

	c.mu.Lock()
	if c.session != nil && resp.ID != "" {
		c.session.User = resp.toUser()
	}
	var user *gateway.User
	if c.session != nil {
		u := c.session.User
		user = &u
	}
	c.mu.Unlock()

	c.Publish(gateway.EventUserUpdated, user)
	return nil
}

// SignOut revokes the session at the provider and forgets it locally. The
// local session is cleared even when the provider call fails.
func (c *Client) SignOut(ctx context.Context) error {
	token, ok := c.accessToken()

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	clearErr := c.store.Clear(ctx)
	c.Publish(gateway.EventSignedOut, nil)

	var remoteErr error
	if ok {
		remoteErr = c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, token, nil, nil)
		var authErr *gateway.AuthError
		if errors.As(remoteErr, &authErr) && (authErr.Status == http.StatusUnauthorized || authErr.Status == http.StatusNotFound) {
			remoteErr = nil
		}
	}
	if err := errors.Join(remoteErr, clearErr); err != nil {
		return oops.Code("BAAS_SIGN_OUT_FAILED").Wrap(err)
	}
	return nil
}

func (c *Client) accessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.AccessToken == "" {
		return "", false
	}
	return c.session.AccessToken, true
}

func (c *Client) startSession(ctx context.Context, resp tokenResponse, kind gateway.EventKind) (*gateway.User, error) {
	if resp.AccessToken == "" {
		return nil, oops.Code("BAAS_SESSION_MISSING").Errorf("provider response carried no access token")
	}
	s := resp.session(c.now())
	if err := c.store.Save(ctx, s); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	user := s.User
	c.Publish(kind, &user)
	return &user, nil
}

// do sends one JSON request with retries and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return oops.Code("BAAS_ENCODE_FAILED").With("path", path).Wrap(err)
		}
	}
	endpoint := c.base.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	idempotent := idempotentCalls[method+" "+path]
	backoff := retry.WithMaxRetries(c.cfg.RetryAttempts, retry.NewExponential(c.cfg.RetryBaseDelay))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.once(ctx, method, endpoint.String(), bearer, body, out)
		if err == nil {
			return nil
		}
		var authErr *gateway.AuthError
		if errors.As(err, &authErr) && authErr.Status < http.StatusInternalServerError {
			return err
		}
		c.logger.WarnContext(ctx, "provider request failed",
			"method", method, "path", path, "attempt", attempt, "error", err)
		if !idempotent && !neverSent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// idempotentCalls may be repeated after the provider has seen them. Sign-up,
// token grants, recovery emails and code verification may not.
var idempotentCalls = map[string]bool{
	http.MethodPut + " /auth/v1/user":    true,
	http.MethodPost + " /auth/v1/logout": true,
}

// neverSent reports whether err happened before the connection was made, so
// the provider cannot have acted on the request.
func neverSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func (c *Client) once(ctx context.Context, method, endpoint, bearer string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return oops.Code("BAAS_REQUEST_INVALID").Wrap(err)
	}
	req.Header.Set("apikey", c.cfg.AnonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.cfg.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code("BAAS_TRANSPORT_FAILED").With("endpoint", endpoint).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return oops.Code("BAAS_TRANSPORT_FAILED").With("endpoint", endpoint).Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return oops.Code("BAAS_DECODE_FAILED").With("endpoint", endpoint).Wrap(err)
	}
	return nil
}
