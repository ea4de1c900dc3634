// Package auth provides session providers implementing domain.AuthClient.
// The local driver keeps the session in process memory; the httpapi driver
// talks to a hosted GoTrue-compatible endpoint.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"warbler/internal/auth/httpapi"
	"warbler/internal/config"
	"warbler/pkg/domain"
)

var _ domain.AuthClient = (*Local)(nil)

// Local is an in-process auth client. Sessions are established directly
// through SignIn, which makes it the natural driver for tests and for
// embedding behind a custom login flow.
type Local struct {
	mu        sync.Mutex
	session   *domain.AuthUser
	nextID    int
	callbacks map[int]func(domain.AuthEvent)
}

// NewLocal returns a client with no active session.
func NewLocal() *Local {
	return &Local{callbacks: make(map[int]func(domain.AuthEvent))}
}

// Session returns the current session user, nil when signed out.
func (l *Local) Session(context.Context) (*domain.AuthUser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return nil, nil
	}
	u := *l.session
	return &u, nil
}

// SignIn establishes a session for u and notifies subscribers.
func (l *Local) SignIn(u domain.AuthUser) {
	l.mu.Lock()
	l.session = &u
	fns := l.snapshotCallbacks()
	l.mu.Unlock()
	ev := domain.AuthEvent{Type: domain.AuthSignedIn, User: &u}
	for _, fn := range fns {
		fn(ev)
	}
}

// SignOut clears the session and notifies subscribers.
func (l *Local) SignOut(context.Context) error {
	l.mu.Lock()
	l.session = nil
	fns := l.snapshotCallbacks()
	l.mu.Unlock()
	ev := domain.AuthEvent{Type: domain.AuthSignedOut}
	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

// SignInWithOAuth returns the provider authorize URL the caller should
// redirect to. The local driver performs no redirect itself.
func (l *Local) SignInWithOAuth(_ context.Context, provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("auth: provider required")
	}
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return "/auth/v1/authorize?" + q.Encode(), nil
}

// OnAuthStateChange registers fn for session transitions. The returned
// cancel is idempotent.
func (l *Local) OnAuthStateChange(fn func(domain.AuthEvent)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.callbacks[id] = fn
	l.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.callbacks, id)
			l.mu.Unlock()
		})
	}
}

// snapshotCallbacks must be called with mu held.
func (l *Local) snapshotCallbacks() []func(domain.AuthEvent) {
	fns := make([]func(domain.AuthEvent), 0, len(l.callbacks))
	for _, fn := range l.callbacks {
		fns = append(fns, fn)
	}
	return fns
}

// Driver identifies a concrete auth client implementation.
type Driver string

const (
	DriverLocal   Driver = "local"   // in-process sessions (default)
	DriverHTTPAPI Driver = "httpapi" // hosted GoTrue-compatible endpoint
)

// Open selects an auth client from configuration. Defaults to local when
// no driver is set.
func Open(cfg config.AuthConfig) (domain.AuthClient, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverLocal
	}
	switch driver {
	case DriverLocal:
		return NewLocal(), nil
	case DriverHTTPAPI:
		return httpapi.New(cfg)
	default:
		return nil, fmt.Errorf("unknown auth driver %s", driver)
	}
}
