package taiga

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"taigent/internal/logging"
)

// Credentials are the username/password pair used for normal Taiga login.
type Credentials struct {
	Username string
	Password string
}

// Session owns the auth token of one Taiga account. All authentication and
// refresh goes through a single flight, so concurrent callers that find a
// missing or stale token trigger at most one network round trip between them.
type Session struct {
	baseURL string
	http    *http.Client
	creds   Credentials

	mu           sync.Mutex
	authToken    string
	refreshToken string
	userID       int64

	flight singleflight.Group
}

// NewSession creates an unauthenticated session.
func NewSession(baseURL string, creds Credentials, httpClient *http.Client) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Session{baseURL: baseURL, http: httpClient, creds: creds}
}

// Token returns the cached token, authenticating first if there is none.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	tok := s.authToken
	s.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return s.renew(ctx, "")
}

// Refresh replaces stale with a fresh token. If another caller already
// replaced it, the new token is returned without a network call. Refresh
// uses the refresh token when there is one and falls back to a full login.
func (s *Session) Refresh(ctx context.Context, stale string) (string, error) {
	return s.renew(ctx, stale)
}

// UserID returns the id of the authenticated account, or 0.
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Invalidate drops the cached tokens.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken, s.refreshToken = "", ""
}

func (s *Session) renew(ctx context.Context, stale string) (string, error) {
	ch := s.flight.DoChan("auth", func() (interface{}, error) {
		s.mu.Lock()
		current, refresh := s.authToken, s.refreshToken
		s.mu.Unlock()

		if current != "" && current != stale {
			return current, nil
		}

		// The flight outlives any single caller; the http client timeout
		// still bounds it.
		flightCtx := context.WithoutCancel(ctx)

		if refresh != "" {
			resp, err := s.post(flightCtx, "/auth/refresh", refreshRequest{Refresh: refresh})
			logging.Audit().Auth(true, s.creds.Username, err)
			if err == nil {
				s.store(resp)
				logging.Tracker("Authentication token refreshed")
				return resp.AuthToken, nil
			}
			logging.TrackerWarn("Token refresh failed, falling back to login: %v", err)
		}

		resp, err := s.post(flightCtx, "/auth", authRequest{
			Type:     "normal",
			Username: s.creds.Username,
			Password: s.creds.Password,
		})
		logging.Audit().Auth(false, s.creds.Username, err)
		if err != nil {
			return "", fmt.Errorf("taiga authentication failed: %w", err)
		}
		s.store(resp)
		logging.Tracker("Authenticated as %s", s.creds.Username)
		return resp.AuthToken, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) store(resp *authResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = resp.AuthToken
	if resp.Refresh != "" {
		s.refreshToken = resp.Refresh
	}
	if resp.ID != 0 {
		s.userID = resp.ID
	}
}

func (s *Session) post(ctx context.Context, path string, body any) (*authResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("taiga: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(http.MethodPost, path, resp)
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("taiga: decode %s response: %w", path, err)
	}
	if out.AuthToken == "" {
		return nil, errors.New("taiga: no auth token received")
	}
	return &out, nil
}
