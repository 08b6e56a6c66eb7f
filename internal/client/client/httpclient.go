package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/client/tokenstore"
	"github.com/dmitrijs2005/bezrook/internal/common"
	"github.com/dmitrijs2005/bezrook/internal/logging"
)

const maxResponseBytes = 1 << 20

// HTTPClient talks to the backend over HTTP/JSON. It never retries: every
// retry in the application is user initiated.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  tokenstore.Store
	log     logging.Logger

	mu        sync.Mutex
	onExpired []func(ctx context.Context)
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client (tests pass the one from
// httptest.Server).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

// WithTimeout bounds every request. Zero, the default, means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.timeout = d }
}

func NewHTTPClient(baseURL string, tokens tokenstore.Store, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
		tokens:  tokens,
		log:     logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnSessionExpired registers fn to run after any authorized call received
// 401 and the token was cleared. Hooks run synchronously in the caller's
// goroutine, in registration order.
func (c *HTTPClient) OnSessionExpired(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type totpVerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sessionsResponse struct {
	Sessions []models.SessionRecord `json:"sessions"`
}

// Login posts the credentials. A token in the answer is stored; the
// "TOTP required" message selects the challenge. Navigation is up to the
// caller.
func (c *HTTPClient) Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error) {
	if err := validateLoginForm(creds); err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", "", creds, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if resp.Token != "" {
		if err := c.tokens.Set(ctx, resp.Token); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	return &models.LoginResult{
		Token:        resp.Token,
		TOTPRequired: resp.Message == common.TOTPRequiredMessage,
		Message:      resp.Message,
	}, nil
}

// Register validates locally and only then creates the account.
func (c *HTTPClient) Register(ctx context.Context, creds models.Credentials) error {
	if err := ValidateCredentials(creds); err != nil {
		return err
	}

	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/register", "", creds, &resp); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// AuthorizedRequest sends method/path with the stored bearer token and
// decodes a 2xx body into out when out is not nil.
//
// Without a token it returns ErrUnauthenticated and sends nothing. A 401
// clears the token store, runs the OnSessionExpired hooks and returns
// ErrSessionExpired.
func (c *HTTPClient) AuthorizedRequest(ctx context.Context, method, path string, body, out any) error {
	return c.authorized(ctx, method, path, body, out, true)
}

// authorized is AuthorizedRequest with the 401 handling made optional.
// With expireOn401 false a 401 comes back as the plain *RejectedError and
// the token stays in place.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, body, out any, expireOn401 bool) error {
	token, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !ok {
		return ErrUnauthenticated
	}

	err = c.do(ctx, method, path, token, body, out)

	var rej *RejectedError
	if expireOn401 && errors.As(err, &rej) && rej.Status == http.StatusUnauthorized {
		c.expire(ctx, method, path)
		return fmt.Errorf("%w (%s)", ErrSessionExpired, rej.Detail)
	}
	return err
}

func (c *HTTPClient) expire(ctx context.Context, method, path string) {
	if err := c.tokens.Clear(ctx); err != nil {
		c.log.Error(ctx, "failed to clear token after 401", "error", err)
	}
	c.log.Warn(ctx, "session expired", "method", method, "path", path)

	c.mu.Lock()
	hooks := append([]func(context.Context){}, c.onExpired...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx)
	}
}

func (c *HTTPClient) Profile(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := c.AuthorizedRequest(ctx, http.MethodGet, "/api/user", nil, &p); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p.Username == "" {
		return nil, fmt.Errorf("get profile: %w: empty username", ErrMalformedResponse)
	}
	return &p, nil
}

func (c *HTTPClient) StartTOTPSetup(ctx context.Context) (*models.TOTPEnrollment, error) {
	var e models.TOTPEnrollment
	if err := c.AuthorizedRequest(ctx, http.MethodPost, "/api/totp/setup", struct{}{}, &e); err != nil {
		return nil, fmt.Errorf("start totp setup: %w", err)
	}
	if e.Secret == "" {
		return nil, fmt.Errorf("start totp setup: %w: empty secret", ErrMalformedResponse)
	}
	return &e, nil
}

// ConfirmTOTPSetup sends only the 6-digit code, never the secret.
func (c *HTTPClient) ConfirmTOTPSetup(ctx context.Context, code string) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	if err := c.AuthorizedRequest(ctx, http.MethodPost, "/api/totp/setup/verify", codeRequest{Code: code}, nil); err != nil {
		return fmt.Errorf("confirm totp setup: %w", err)
	}
	return nil
}

// VerifyTOTP answers the login challenge. Both a non-2xx status and
// success=false mean the code was not accepted. The server answers a wrong
// code with 401, so here a 401 is a rejection and does not end the session:
// the token is kept and the user may try again.
func (c *HTTPClient) VerifyTOTP(ctx context.Context, code string) error {
	if err := ValidateCode(code); err != nil {
		return err
	}

	var resp totpVerifyResponse
	if err := c.authorized(ctx, http.MethodPost, "/api/totp/verify", codeRequest{Code: code}, &resp, false); err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !resp.Success {
		detail := resp.Message
		if detail == "" {
			detail = "invalid TOTP code"
		}
		return fmt.Errorf("verify totp: %w", &RejectedError{Status: http.StatusOK, Detail: detail})
	}
	return nil
}

// ListSessions returns the server-ordered session list. Duplicate ids or
// more than one current session make the response malformed.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]models.SessionRecord, error) {
	var resp sessionsResponse
	if err := c.AuthorizedRequest(ctx, http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	seen := make(map[models.SessionID]struct{}, len(resp.Sessions))
	current := 0
	for _, s := range resp.Sessions {
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("list sessions: %w: duplicate id %s", ErrMalformedResponse, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.IsCurrent {
			current++
		}
	}
	if current > 1 {
		return nil, fmt.Errorf("list sessions: %w: %d current sessions", ErrMalformedResponse, current)
	}

	if resp.Sessions == nil {
		return []models.SessionRecord{}, nil
	}
	return resp.Sessions, nil
}

func (c *HTTPClient) RevokeSession(ctx context.Context, id models.SessionID) error {
	if id == "" {
		return InvalidOperation("empty session id")
	}
	path := "/api/sessions/" + url.PathEscape(id.String())
	if err := c.AuthorizedRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("revoke session %s: %w", id, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "api call failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	c.log.Debug(ctx, "api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejected(resp.StatusCode, errorDetail(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// errorDetail extracts a human readable message from an error body:
// {"detail": "..."}, FastAPI's {"detail": [{"msg": "..."}]}, or
// {"message": "..."}.
func errorDetail(body []byte) string {
	var e struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}

	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(e.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return e.Message
}
