// Package taiga is a small client for the Taiga REST API (v1) covering
// projects, epics, user stories and epic links.
package taiga

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
	"time"

	"taigent/internal/logging"
)

// Sentinel errors matched by APIError.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from Taiga.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("taiga: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if detail := errorDetail(e.Body); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// Is reports whether the status maps to ErrNotFound or ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

const maxErrorBody = 512

func newAPIError(method, path string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
}

// errorDetail extracts Taiga's human-readable error from a response body.
func errorDetail(body string) string {
	var parsed struct {
		ErrorMessage string `json:"_error_message"`
		Detail       string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		if parsed.ErrorMessage != "" {
			return parsed.ErrorMessage
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return strings.TrimSpace(body)
}

// Client performs authenticated requests against one Taiga instance.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for the API rooted at baseURL
// (for example http://localhost:8080/api/v1).
func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = NewSession(c.baseURL, creds, c.http)
	return c
}

// Session returns the client's auth session.
func (c *Client) Session() *Session {
	return c.session
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// list disables Taiga's default pagination of list endpoints.
	list bool
}

// do sends r with the session token. A 401 on a non-POST request refreshes
// the token and retries once; POST is never retried so a create cannot
// happen twice.
func (c *Client) do(ctx context.Context, r request) error {
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}

	timer := logging.StartTimer(logging.CategoryTracker, r.method+" "+r.path)
	defer timer.StopWithThreshold(2 * time.Second)

	err = c.send(ctx, r, token)
	var apiErr *APIError
	if r.method != http.MethodPost && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		logging.TrackerDebug("%s %s returned 401, refreshing token", r.method, r.path)
		token, err = c.session.Refresh(ctx, token)
		if err != nil {
			return err
		}
		err = c.send(ctx, r, token)
	}
	return err
}

func (c *Client) send(ctx context.Context, r request, token string) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("taiga: encode %s body: %w", r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("taiga: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.list {
		req.Header.Set("x-disable-pagination", "True")
	}

	logging.TrackerDebug("%s %s", r.method, target)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("taiga: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(r.method, r.path, resp)
		logging.TrackerWarn("%v", apiErr)
		return apiErr
	}

	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return fmt.Errorf("taiga: decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/me", out: &u}); err != nil {
		return nil, err
	}
	return &u, nil
}

// protectedFields may not be changed through an update.
var protectedFields = map[string]bool{"id": true, "version": true, "project": true}

// IsProtectedField reports whether key is managed by the client on updates.
func IsProtectedField(key string) bool {
	return protectedFields[key]
}

// patchWithVersion sends updates plus the current version, as Taiga's
// optimistic concurrency requires.
func (c *Client) patchWithVersion(ctx context.Context, path string, version int64, updates map[string]any, out any) error {
	body := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		if !protectedFields[k] {
			body[k] = v
		}
	}
	body["version"] = version
	return c.do(ctx, request{method: http.MethodPatch, path: path, body: body, out: out})
}

func idPath(prefix string, id int64) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}
