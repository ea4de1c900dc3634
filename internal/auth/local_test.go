package auth

import (
	"context"
	"testing"

	"warbler/internal/config"
	"warbler/pkg/domain"
)

func TestLocalSessionLifecycle(t *testing.T) {
	client := NewLocal()
	ctx := context.Background()

	if u, err := client.Session(ctx); err != nil || u != nil {
		t.Fatalf("expected empty session, got %+v %v", u, err)
	}

	var events []domain.AuthEvent
	cancel := client.OnAuthStateChange(func(ev domain.AuthEvent) { events = append(events, ev) })
	defer cancel()

	client.SignIn(domain.AuthUser{ID: "u1", Email: "ada@example.com", Name: "Ada Lovelace"})
	u, err := client.Session(ctx)
	if err != nil || u == nil || u.ID != "u1" {
		t.Fatalf("session after sign in: %+v %v", u, err)
	}

	if err := client.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if u, _ := client.Session(ctx); u != nil {
		t.Fatalf("expected cleared session, got %+v", u)
	}

	if len(events) != 2 || events[0].Type != domain.AuthSignedIn || events[1].Type != domain.AuthSignedOut {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].User == nil || events[0].User.ID != "u1" {
		t.Fatalf("sign-in event missing user: %+v", events[0])
	}
	if events[1].User != nil {
		t.Fatalf("sign-out event should carry no user: %+v", events[1])
	}
}

func TestLocalOAuthURL(t *testing.T) {
	client := NewLocal()
	url, err := client.SignInWithOAuth(context.Background(), "google", "/home")
	if err != nil {
		t.Fatalf("SignInWithOAuth: %v", err)
	}
	if url != "/auth/v1/authorize?provider=google&redirect_to=%2Fhome" {
		t.Fatalf("unexpected url %s", url)
	}
	if _, err := client.SignInWithOAuth(context.Background(), "", ""); err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestLocalCancelStopsDelivery(t *testing.T) {
	client := NewLocal()
	var calls int
	cancel := client.OnAuthStateChange(func(domain.AuthEvent) { calls++ })
	client.SignIn(domain.AuthUser{ID: "u1"})
	cancel()
	cancel() // idempotent
	client.SignIn(domain.AuthUser{ID: "u2"})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	if _, err := Open(config.AuthConfig{}); err != nil {
		t.Fatalf("default driver: %v", err)
	}
	if _, err := Open(config.AuthConfig{Driver: string(DriverHTTPAPI), Endpoint: "https://auth.example.com"}); err != nil {
		t.Fatalf("httpapi driver: %v", err)
	}
	if _, err := Open(config.AuthConfig{Driver: string(DriverHTTPAPI)}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := Open(config.AuthConfig{Driver: "ldap"}); err == nil {
		t.Fatalf("expected unknown-driver error")
	}
}
