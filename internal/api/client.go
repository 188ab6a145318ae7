// Package api is the HTTP client for the admin API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapadmin/internal/auth"
	"github.com/leapstack-labs/leapadmin/internal/browser"
)

const (
	// DefaultPrefix is where the admin API is mounted on the server.
	DefaultPrefix  = "/api/admin"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

// Version is reported in the User-Agent header. It is set by the CLI.
var Version = "dev"

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// Prefix is prepended to every admin endpoint. Defaults to DefaultPrefix.
	Prefix string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
	// Tokens supplies the bearer token for authenticated endpoints.
	Tokens auth.TokenProvider
	// OnUnauthorized is called when an authenticated request gets a 401.
	OnUnauthorized func()
	// HTTPClient overrides the transport. Its Timeout is left untouched.
	HTTPClient *http.Client
	UserAgent  string
	Logger     *slog.Logger
}

// Client talks to the admin API. It is safe for concurrent use.
type Client struct {
	base           *url.URL
	prefix         string
	tokens         auth.TokenProvider
	onUnauthorized func()
	http           *http.Client
	userAgent      string
	logger         *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL %q must be http or https", cfg.BaseURL)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = auth.StaticToken("")
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "leapadmin/" + Version
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		base:           base,
		prefix:         prefix,
		tokens:         tokens,
		onUnauthorized: cfg.OnUnauthorized,
		http:           httpClient,
		userAgent:      ua,
		logger:         logger,
	}, nil
}

// BaseURL returns the configured server root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ListTables implements browser.CatalogSource.
func (c *Client) ListTables(ctx context.Context) ([]browser.TableSummary, error) {
	var tables []browser.TableSummary
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   c.prefix + "/data-explorer/tables",
		authed: true,
	}, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// FetchPage implements browser.PageSource. No request is sent when there is
// no token.
func (c *Client) FetchPage(ctx context.Context, table string, page, limit int) (browser.PageResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var res browser.PageResult
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   c.prefix + "/data-explorer/tables/" + url.PathEscape(table) + "/data",
		query:  q,
		authed: true,
	}, &res); err != nil {
		return browser.PageResult{}, err
	}
	return res, nil
}

// LoginResult is the response of a successful login.
type LoginResult struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Login exchanges credentials for a token. A 401 here means bad credentials
// and does not trigger OnUnauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   c.prefix + "/login",
		body:   map[string]string{"email": email, "password": password},
	}, &res)
	if err != nil {
		return LoginResult{}, err
	}
	if res.Token == "" {
		return LoginResult{}, &APIError{Status: http.StatusOK, Message: "login response carried no token"}
	}
	return res, nil
}

// Profile returns the account behind the current token.
func (c *Client) Profile(ctx context.Context) (auth.User, error) {
	var res struct {
		User auth.User `json:"user"`
	}
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   c.prefix + "/profile",
		authed: true,
	}, &res); err != nil {
		return auth.User{}, err
	}
	return res.User, nil
}

// Health is the server liveness report.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health calls GET /health at the server root. It needs no token.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, request{method: http.MethodGet, path: "/health"}, &h)
	return h, err
}

type request struct {
	method string
	path   string // escaped, relative to the base URL
	query  url.Values
	body   any
	authed bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var token string
	if r.authed {
		tok, ok := c.tokens.Token()
		if !ok {
			return ErrUnauthenticated
		}
		token = tok
	}

	u := *c.base
	escaped := strings.TrimRight(u.EscapedPath(), "/") + r.path
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	u.Path, u.RawPath = decoded, escaped
	u.RawQuery = r.query.Encode()
	target := u.String()

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", r.method, r.path, err)
	}

	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			"method", r.method,
			"path", r.path,
			"request_id", reqID,
			"error", err,
		)
		return &UnreachableError{URL: c.base.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &UnreachableError{URL: c.base.String(), Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("api request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", reqID,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, data)
		if r.authed && resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return nil
}

// Compile-time checks.
var (
	_ browser.CatalogSource = (*Client)(nil)
	_ browser.PageSource    = (*Client)(nil)
)
