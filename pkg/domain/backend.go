package domain

import (
	"context"
	"errors"
)

// ErrNoRows is returned by SelectSingle when no row matches the query.
var ErrNoRows = errors.New("domain: no rows in result")

// Store is the row-level capability set of the hosted backend: equality
// queries, single-row mutations, and a per-table change-event subscription.
// Implementations are safe for concurrent use.
type Store interface {
	// Select returns every row matching the query, ordered and limited as
	// the query specifies. Rows are detached copies.
	Select(ctx context.Context, q Query) ([]Row, error)
	// SelectSingle returns the first matching row, or ErrNoRows.
	SelectSingle(ctx context.Context, q Query) (Row, error)
	// Insert stores one row (struct or Row). A missing id and created_at
	// are assigned. The stored row is returned.
	Insert(ctx context.Context, table string, row any) (Row, error)
	// Update merges patch into every row matching filter and returns the
	// number of rows touched. Unlisted columns are left as they are.
	Update(ctx context.Context, table string, filter Filter, patch Row) (int, error)
	// Delete removes every row matching filter and returns the count.
	Delete(ctx context.Context, table string, filter Filter) (int, error)
	// Subscribe registers fn for change events on a table, optionally
	// scoped to a single row when rowID is non-empty. The returned cancel
	// tears the subscription down; it is safe to call more than once.
	Subscribe(table, rowID string, fn func(Event)) (cancel func())
}

// AuthUser is the provider-level identity carried by a session.
type AuthUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// AuthEventType classifies a session-change notification.
type AuthEventType string

// Session-change notifications delivered by the auth subsystem.
const (
	AuthSignedIn  AuthEventType = "SIGNED_IN"
	AuthSignedOut AuthEventType = "SIGNED_OUT"
)

// AuthEvent is one session-change notification. User is set on SIGNED_IN.
type AuthEvent struct {
	Type AuthEventType
	User *AuthUser
}

// AuthClient is the session subsystem of the hosted backend.
type AuthClient interface {
	// Session returns the currently authenticated identity, or nil when
	// signed out.
	Session(ctx context.Context) (*AuthUser, error)
	// OnAuthStateChange registers fn for session-change events and returns
	// a cancel function.
	OnAuthStateChange(fn func(AuthEvent)) (cancel func())
	// SignInWithOAuth starts the provider OAuth flow and returns the
	// authorization URL the caller should redirect to.
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	// SignOut clears the current session.
	SignOut(ctx context.Context) error
}
