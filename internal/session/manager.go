// Package session bootstraps the signed-in user: it provisions a profile
// row on first login, keeps the bookmark list loaded, and exposes the
// result as an observable snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"warbler/internal/metrics"
	"warbler/pkg/domain"
)

const (
	defaultAdminUsername = "ccrsxx"
	defaultAvatarURL     = "/assets/twitter-avatar.jpg"
)

// Snapshot is the current bootstrap state. Err is set instead of being
// returned from Start; the session always settles.
type Snapshot struct {
	User       *domain.User
	Bookmarks  []domain.Bookmark
	Err        error
	Loading    bool
	IsAdmin    bool
	RandomSeed string
}

// Manager drives the session lifecycle against a row store and an auth
// client. All exported methods are safe for concurrent use.
type Manager struct {
	store         domain.Store
	auth          domain.AuthClient
	adminUsername string

	// test hooks
	randInt func() int
	seedFn  func() string

	mu        sync.Mutex
	snapshot  Snapshot
	nextID    int
	callbacks map[int]func(Snapshot)
	unsubAuth func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithAdminUsername overrides the username granted the admin flag.
func WithAdminUsername(username string) Option {
	return func(m *Manager) { m.adminUsername = username }
}

// NewManager builds a manager. Call Start to begin the session.
func NewManager(store domain.Store, auth domain.AuthClient, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		auth:          auth,
		adminUsername: defaultAdminUsername,
		randInt:       func() int { return rand.Intn(9999) + 1 },
		seedFn:        uuid.NewString,
		callbacks:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to auth state changes and bootstraps the current
// session if one exists. Errors surface through the snapshot.
func (m *Manager) Start(ctx context.Context) {
	m.unsubAuth = m.auth.OnAuthStateChange(func(ev domain.AuthEvent) {
		switch ev.Type {
		case domain.AuthSignedIn:
			if ev.User != nil {
				m.handleUser(ctx, *ev.User)
			}
		case domain.AuthSignedOut:
			m.publish(Snapshot{})
		}
	})

	m.publish(Snapshot{Loading: true})
	user, err := m.auth.Session(ctx)
	if err != nil {
		m.publish(Snapshot{Err: err})
		return
	}
	if user == nil {
		m.publish(Snapshot{})
		return
	}
	m.handleUser(ctx, *user)
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// OnChange registers fn for snapshot updates. The returned cancel is
// idempotent.
func (m *Manager) OnChange(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.callbacks[id] = fn
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.callbacks, id)
			m.mu.Unlock()
		})
	}
}

// Close detaches from auth state changes. Snapshot stays readable.
func (m *Manager) Close() {
	if m.unsubAuth != nil {
		m.unsubAuth()
	}
}

// SignInWithGoogle returns the Google authorize URL; the session itself
// is established by the subsequent auth state change.
func (m *Manager) SignInWithGoogle(ctx context.Context) (string, error) {
	return m.auth.SignInWithOAuth(ctx, "google", "/home")
}

// SignOut ends the session.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.auth.SignOut(ctx)
}

// handleUser loads the profile for au, provisioning it on first login,
// then loads bookmarks and settles the snapshot.
func (m *Manager) handleUser(ctx context.Context, au domain.AuthUser) {
	start := time.Now()
	defer metrics.ObserveBootstrap(start)

	row, err := m.store.SelectSingle(ctx, domain.ByID(domain.TableUsers, au.ID))
	if errors.Is(err, domain.ErrNoRows) {
		if err := m.provisionUser(ctx, au); err != nil {
			m.publish(Snapshot{Err: err})
			return
		}
		row, err = m.store.SelectSingle(ctx, domain.ByID(domain.TableUsers, au.ID))
		if err != nil {
			m.publish(Snapshot{Err: err})
			return
		}
	} else if err != nil {
		m.publish(Snapshot{Err: err})
		return
	}

	user, err := domain.DecodeRow[domain.User](row)
	if err != nil {
		m.publish(Snapshot{Err: err})
		return
	}

	bookmarks, err := m.loadBookmarks(ctx, user.ID)
	if err != nil {
		m.publish(Snapshot{Err: err})
		return
	}

	m.publish(Snapshot{
		User:       &user,
		Bookmarks:  bookmarks,
		IsAdmin:    user.Username == m.adminUsername,
		RandomSeed: m.seedFn(),
	})
}

// provisionUser inserts the profile and stats rows for a first login.
// Username generation retries until an unclaimed handle is found.
func (m *Manager) provisionUser(ctx context.Context, au domain.AuthUser) error {
	var username string
	for {
		candidate := fmt.Sprintf("%s%d", normalizeName(au.Name), m.randInt())
		taken, err := m.usernameTaken(ctx, candidate)
		if err != nil {
			return err
		}
		if !taken {
			username = candidate
			break
		}
	}

	name := au.Name
	if name == "" {
		name = "User"
	}
	photoURL := au.AvatarURL
	if photoURL == "" {
		photoURL = defaultAvatarURL
	}

	if _, err := m.store.Insert(ctx, domain.TableUsers, domain.Row{
		"id":              au.ID,
		"bio":             nil,
		"name":            name,
		"theme":           nil,
		"accent":          nil,
		"website":         nil,
		"location":        nil,
		"username":        username,
		"email":           au.Email,
		"photo_url":       photoURL,
		"cover_photo_url": nil,
		"verified":        false,
		"following":       []string{},
		"followers":       []string{},
		"total_tweets":    0,
		"total_photos":    0,
		"pinned_tweet":    nil,
	}); err != nil {
		return err
	}
	_, err := m.store.Insert(ctx, domain.TableUserStats, domain.Row{
		"user_id": au.ID,
		"likes":   []string{},
		"tweets":  []string{},
	})
	return err
}

func (m *Manager) usernameTaken(ctx context.Context, username string) (bool, error) {
	rows, err := m.store.Select(ctx, domain.Query{
		Table:  domain.TableUsers,
		Filter: domain.Filter{"username": username},
		Limit:  1,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (m *Manager) loadBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	rows, err := m.store.Select(ctx, domain.Query{
		Table:  domain.TableBookmarks,
		Filter: domain.Filter{"user_id": userID},
		Order:  &domain.Order{Field: "created_at", Descending: true},
	})
	if err != nil {
		return nil, err
	}
	bookmarks := make([]domain.Bookmark, 0, len(rows))
	for _, row := range rows {
		b, err := domain.DecodeRow[domain.Bookmark](row)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, nil
}

func (m *Manager) publish(next Snapshot) {
	m.mu.Lock()
	m.snapshot = next
	fns := make([]func(Snapshot), 0, len(m.callbacks))
	for _, fn := range m.callbacks {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}

// normalizeName strips all whitespace from the display name and lowers
// it, falling back to "user" when nothing remains.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
