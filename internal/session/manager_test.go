package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"warbler/internal/auth"
	"warbler/internal/store/memory"
	"warbler/pkg/domain"
)

func newFixture(t *testing.T, randSeq []int, opts ...Option) (*Manager, *memory.Store, *auth.Local) {
	t.Helper()
	store := memory.NewStore()
	var n int
	store.SetIDFunc(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	})
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var ticks int
	store.SetNowFunc(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	})

	client := auth.NewLocal()
	m := NewManager(store, client, opts...)
	var r int
	m.randInt = func() int {
		v := randSeq[r%len(randSeq)]
		r++
		return v
	}
	var seeds int
	m.seedFn = func() string {
		seeds++
		return fmt.Sprintf("seed-%d", seeds)
	}
	return m, store, client
}

func TestStartWithoutSessionSettlesEmpty(t *testing.T) {
	m, _, _ := newFixture(t, []int{1})
	defer m.Close()
	m.Start(context.Background())
	snap := m.Snapshot()
	if snap.Loading || snap.User != nil || snap.Err != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFirstLoginProvisionsUserAndStats(t *testing.T) {
	m, store, client := newFixture(t, []int{42})
	defer m.Close()
	ctx := context.Background()
	m.Start(ctx)

	client.SignIn(domain.AuthUser{ID: "u1", Email: "ada@example.com", Name: "Ada Lovelace"})

	snap := m.Snapshot()
	if snap.Err != nil || snap.Loading {
		t.Fatalf("bootstrap failed: %+v", snap)
	}
	if snap.User == nil || snap.User.Username != "adalovelace42" {
		t.Fatalf("unexpected user %+v", snap.User)
	}
	if snap.User.PhotoURL != "/assets/twitter-avatar.jpg" {
		t.Fatalf("missing avatar fallback: %q", snap.User.PhotoURL)
	}
	if snap.RandomSeed == "" {
		t.Fatalf("random seed not assigned")
	}

	stats, err := store.Select(ctx, domain.Query{
		Table:  domain.TableUserStats,
		Filter: domain.Filter{"user_id": "u1"},
	})
	if err != nil || len(stats) != 1 {
		t.Fatalf("stats row not provisioned: %v %+v", err, stats)
	}
}

func TestUsernameCollisionRetries(t *testing.T) {
	m, store, client := newFixture(t, []int{1, 1, 7})
	defer m.Close()
	ctx := context.Background()
	if _, err := store.Insert(ctx, domain.TableUsers, domain.Row{"id": "other", "username": "adalovelace1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m.Start(ctx)

	client.SignIn(domain.AuthUser{ID: "u1", Name: "Ada Lovelace"})

	snap := m.Snapshot()
	if snap.User == nil || snap.User.Username != "adalovelace7" {
		t.Fatalf("expected retried username, got %+v", snap.User)
	}
}

func TestEmptyNameFallsBackToUser(t *testing.T) {
	m, _, client := newFixture(t, []int{5})
	defer m.Close()
	m.Start(context.Background())

	client.SignIn(domain.AuthUser{ID: "u1", Name: "   "})

	snap := m.Snapshot()
	if snap.User == nil || snap.User.Username != "user5" || snap.User.Name != "User" {
		t.Fatalf("unexpected user %+v", snap.User)
	}
}

func TestExistingUserIsNotReprovisioned(t *testing.T) {
	m, store, client := newFixture(t, []int{9})
	defer m.Close()
	ctx := context.Background()
	if _, err := store.Insert(ctx, domain.TableUsers, domain.Row{
		"id": "u1", "username": "ada42", "name": "Ada", "photo_url": "/p.png",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, tweetID := range []string{"t1", "t2"} {
		if _, err := store.Insert(ctx, domain.TableBookmarks, domain.Row{"user_id": "u1", "tweet_id": tweetID}); err != nil {
			t.Fatalf("seed bookmark: %v", err)
		}
	}
	m.Start(ctx)

	client.SignIn(domain.AuthUser{ID: "u1", Name: "Ada"})

	snap := m.Snapshot()
	if snap.User == nil || snap.User.Username != "ada42" {
		t.Fatalf("existing profile not loaded: %+v", snap.User)
	}
	if len(snap.Bookmarks) != 2 || snap.Bookmarks[0].TweetID != "t2" || snap.Bookmarks[1].TweetID != "t1" {
		t.Fatalf("bookmarks not newest-first: %+v", snap.Bookmarks)
	}
	users, _ := store.Select(ctx, domain.Query{Table: domain.TableUsers})
	if len(users) != 1 {
		t.Fatalf("user duplicated: %+v", users)
	}
}

func TestAdminFlag(t *testing.T) {
	m, store, client := newFixture(t, []int{1}, WithAdminUsername("ops"))
	defer m.Close()
	ctx := context.Background()
	if _, err := store.Insert(ctx, domain.TableUsers, domain.Row{"id": "u1", "username": "ops"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m.Start(ctx)
	client.SignIn(domain.AuthUser{ID: "u1"})
	if snap := m.Snapshot(); !snap.IsAdmin {
		t.Fatalf("expected admin flag: %+v", snap)
	}
}

func TestSignOutClearsSnapshot(t *testing.T) {
	m, _, client := newFixture(t, []int{3})
	defer m.Close()
	ctx := context.Background()
	m.Start(ctx)
	client.SignIn(domain.AuthUser{ID: "u1", Name: "Ada"})
	if m.Snapshot().User == nil {
		t.Fatalf("precondition: signed in")
	}

	if err := m.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	snap := m.Snapshot()
	if snap.User != nil || snap.Bookmarks != nil || snap.IsAdmin || snap.RandomSeed != "" {
		t.Fatalf("snapshot not cleared: %+v", snap)
	}
}

func TestStartBootstrapsExistingSession(t *testing.T) {
	m, _, client := newFixture(t, []int{8})
	defer m.Close()
	client.SignIn(domain.AuthUser{ID: "u1", Name: "Grace Hopper"})
	m.Start(context.Background())
	snap := m.Snapshot()
	if snap.User == nil || snap.User.Username != "gracehopper8" {
		t.Fatalf("session not bootstrapped: %+v", snap)
	}
}

func TestSignInWithGoogleURL(t *testing.T) {
	m, _, _ := newFixture(t, []int{1})
	defer m.Close()
	url, err := m.SignInWithGoogle(context.Background())
	if err != nil {
		t.Fatalf("SignInWithGoogle: %v", err)
	}
	if url != "/auth/v1/authorize?provider=google&redirect_to=%2Fhome" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Ada Lovelace":      "adalovelace",
		"  Grace\tHopper\n": "gracehopper",
		"":                  "user",
		" \t ":              "user",
	}
	for in, want := range cases {
		if got := normalizeName(in); got != want {
			t.Fatalf("normalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
