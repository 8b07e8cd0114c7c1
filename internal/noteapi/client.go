// ABOUTME: HTTP client for the note.com private API with cookie session auth and a GET cache.
// ABOUTME: Every tool reaches the platform through Client.Do; non-2xx replies become *APIError.

package noteapi

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
	"sync"
	"time"

	"github.com/2389/note-gateway/internal/dedupe"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "https://note.com/api"

const (
	sessionCookieName = "_note_session_v5"
	xsrfCookieName    = "XSRF-TOKEN"
	maxResponseSize   = 16 << 20
	defaultUserAgent  = "note-gateway/2.0"
)

// ErrNotAuthenticated is returned when a request needs a session and none is configured.
var ErrNotAuthenticated = errors.New("note.com credentials are not configured")

// APIError describes a non-2xx response from the platform.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("note API %s %s: status %d: %s", e.Method, e.Path, e.Status, body)
}

// Config holds connection and credential settings.
type Config struct {
	BaseURL       string
	SessionCookie string
	XSRFToken     string
	Email         string
	Password      string
	Timeout       time.Duration
	CacheTTL      time.Duration
	CacheSize     int
	UserAgent     string
}

// Request describes one upstream call. Body, when non-nil, is sent as JSON.
type Request struct {
	Path         string
	Method       string
	Body         any
	RequiresAuth bool
	Headers      map[string]string
}

// Client talks to the note.com API.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     *dedupe.Cache[json.RawMessage]
	logger    *slog.Logger

	mu        sync.RWMutex
	session   string
	xsrfToken string
	email     string
	password  string
}

// New creates a Client. A zero CacheTTL disables response caching.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := &Client{
		baseURL:   baseURL,
		userAgent: ua,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		session:   cfg.SessionCookie,
		xsrfToken: cfg.XSRFToken,
		email:     cfg.Email,
		password:  cfg.Password,
	}
	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = 512
		}
		c.cache = dedupe.New[json.RawMessage](cfg.CacheTTL, size)
	}
	return c
}

// IsAuthenticated reports whether a session cookie is available.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != ""
}

// Close releases the response cache.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Do performs req and returns the raw JSON response body.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if req.RequiresAuth && !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	cacheable := method == http.MethodGet && c.cache != nil
	if cacheable {
		if cached, ok := c.cache.Get(req.Path); ok {
			c.logger.Debug("note API cache hit", "path", req.Path)
			return cached, nil
		}
	}

	var body io.Reader
	contentType := ""
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	data, _, err := c.send(ctx, method, req.Path, contentType, body, req.Headers)
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.cache.Put(req.Path, data)
	} else if c.cache != nil && method != http.MethodGet {
		c.cache.Purge()
	}
	return data, nil
}

// send executes one HTTP exchange and returns the body and response headers.
func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, headers map[string]string) (json.RawMessage, http.Header, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	c.applyCredentials(httpReq)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("note API call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return nil, nil, fmt.Errorf("note API %s %s: response is not JSON", method, path)
	}
	return json.RawMessage(raw), resp.Header, nil
}

func (c *Client) applyCredentials(req *http.Request) {
	c.mu.RLock()
	session, xsrf := c.session, c.xsrfToken
	c.mu.RUnlock()

	if session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session})
	}
	if xsrf != "" {
		req.AddCookie(&http.Cookie{Name: xsrfCookieName, Value: url.QueryEscape(xsrf)})
		req.Header.Set("X-XSRF-TOKEN", xsrf)
	}
}

// Login signs in with the configured email and password when no session cookie
// was supplied. It is a no-op if a session already exists or no password is set.
func (c *Client) Login(ctx context.Context) error {
	c.mu.RLock()
	hasSession, email, password := c.session != "", c.email, c.password
	c.mu.RUnlock()

	if hasSession || email == "" || password == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"login": email, "password": password})
	if err != nil {
		return fmt.Errorf("marshaling login: %w", err)
	}

	_, header, err := c.send(ctx, http.MethodPost, "/v1/sessions/sign_in", "application/json", bytes.NewReader(payload), nil)
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}

	resp := http.Response{Header: header}
	var session, xsrf string
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case sessionCookieName:
			session = ck.Value
		case xsrfCookieName:
			if v, err := url.QueryUnescape(ck.Value); err == nil {
				xsrf = v
			} else {
				xsrf = ck.Value
			}
		}
	}
	if session == "" {
		return errors.New("signing in: no session cookie in response")
	}

	c.mu.Lock()
	c.session = session
	if xsrf != "" {
		c.xsrfToken = xsrf
	}
	c.mu.Unlock()

	c.logger.Info("signed in to note.com", "email", email)
	return nil
}
