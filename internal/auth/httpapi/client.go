// Package httpapi implements domain.AuthClient against a hosted
// GoTrue-compatible auth endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"warbler/internal/config"
	"warbler/pkg/domain"
)

var _ domain.AuthClient = (*Client)(nil)

// Client is a bearer-token client for the auth REST surface. Session
// lookups are rate limited and retried on 429 and 5xx responses.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration

	mu        sync.Mutex
	session   *domain.AuthUser
	nextID    int
	callbacks map[int]func(domain.AuthEvent)
}

// New builds a client from the auth configuration. The endpoint is the
// base URL of the auth service, e.g. https://project.supabase.co/auth/v1.
func New(cfg config.AuthConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("auth endpoint required for httpapi driver")
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(5), 10),
		maxAttempts: 4,
		baseBackoff: 250 * time.Millisecond,
		callbacks:   make(map[int]func(domain.AuthEvent)),
	}, nil
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Apikey", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

// Session fetches the authenticated user. A 401 or 404 response means no
// active session and returns (nil, nil).
func (c *Client) Session(ctx context.Context) (*domain.AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("auth api status %d", resp.StatusCode)
	}
	var raw struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FullName  string `json:"full_name"`
			AvatarURL string `json:"avatar_url"`
		} `json:"user_metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return &domain.AuthUser{
		ID:        raw.ID,
		Email:     raw.Email,
		Name:      raw.UserMetadata.FullName,
		AvatarURL: raw.UserMetadata.AvatarURL,
	}, nil
}

// RefreshSession re-fetches the session and emits a state change event
// when the signed-in user appears, disappears, or changes identity.
func (c *Client) RefreshSession(ctx context.Context) error {
	user, err := c.Session(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	prev := c.session
	c.session = user
	fns := c.snapshotCallbacks()
	c.mu.Unlock()

	switch {
	case user != nil && (prev == nil || prev.ID != user.ID):
		ev := domain.AuthEvent{Type: domain.AuthSignedIn, User: user}
		for _, fn := range fns {
			fn(ev)
		}
	case user == nil && prev != nil:
		ev := domain.AuthEvent{Type: domain.AuthSignedOut}
		for _, fn := range fns {
			fn(ev)
		}
	}
	return nil
}

// SignInWithOAuth returns the provider authorize URL to redirect to.
func (c *Client) SignInWithOAuth(_ context.Context, provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("auth: provider required")
	}
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/authorize?" + q.Encode(), nil
}

// SignOut revokes the session server-side and notifies subscribers.
func (c *Client) SignOut(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("auth api status %d", resp.StatusCode)
	}

	c.mu.Lock()
	hadSession := c.session != nil
	c.session = nil
	fns := c.snapshotCallbacks()
	c.mu.Unlock()
	if hadSession {
		ev := domain.AuthEvent{Type: domain.AuthSignedOut}
		for _, fn := range fns {
			fn(ev)
		}
	}
	return nil
}

// OnAuthStateChange registers fn for session transitions observed by
// RefreshSession and SignOut. The returned cancel is idempotent.
func (c *Client) OnAuthStateChange(fn func(domain.AuthEvent)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.callbacks[id] = fn
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.callbacks, id)
			c.mu.Unlock()
		})
	}
}

// snapshotCallbacks must be called with mu held.
func (c *Client) snapshotCallbacks() []func(domain.AuthEvent) {
	fns := make([]func(domain.AuthEvent), 0, len(c.callbacks))
	for _, fn := range c.callbacks {
		fns = append(fns, fn)
	}
	return fns
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("auth request failed after %d attempts: %v", c.maxAttempts, lastErr)
}
