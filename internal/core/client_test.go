package core

import (
	"context"
	"path/filepath"
	"testing"

	"warbler/internal/config"
	"warbler/pkg/domain"
)

func TestOpenWithDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Blob.FSRoot = filepath.Join(t.TempDir(), "media")
	client, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = client.Close() }()

	if _, err := client.Store.Insert(context.Background(), domain.TableUsers, domain.Row{"id": "u1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if client.Blob.Driver() == "" || client.Auth == nil {
		t.Fatalf("drivers not wired: %+v", client)
	}
}

func TestMemoryClientSessionBootstrap(t *testing.T) {
	client := NewMemoryClient()
	defer func() { _ = client.Close() }()

	mgr := client.Session()
	defer mgr.Close()
	mgr.Start(context.Background())
	if snap := mgr.Snapshot(); snap.Loading || snap.User != nil {
		t.Fatalf("expected settled empty session, got %+v", snap)
	}
}

func TestOpenSQLiteStoreCloses(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "rows.db")
	cfg.Blob.FSRoot = filepath.Join(t.TempDir(), "media")
	client, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
