package memory

import (
	"bytes"
	"context"
	"testing"

	"warbler/internal/blob/core"
)

func TestPutIsCreateOnly(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Put(ctx, "u1/img-1", bytes.NewReader([]byte("pixels")), core.PutOptions{ContentType: "image/png"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "u1/img-1", bytes.NewReader([]byte("other")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}
	data, ok := store.Bytes("u1/img-1")
	if !ok || string(data) != "pixels" {
		t.Fatalf("content overwritten: %q %v", data, ok)
	}
}

func TestHeadListDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"u1/b", "u1/a", "u2/c"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	info, err := store.Head(ctx, "u1/a")
	if err != nil || info.Size != 1 {
		t.Fatalf("head: %v %#v", err, info)
	}
	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatalf("expected head error for missing key")
	}

	list, err := store.List(ctx, "u1/")
	if err != nil || len(list) != 2 || list[0].Key != "u1/a" {
		t.Fatalf("list: %v %+v", err, list)
	}

	if ok, err := store.Delete(ctx, "u1/a"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "u1/a"); err != nil || ok {
		t.Fatalf("expected delete false on missing, got %v %v", ok, err)
	}
}

func TestPublicURL(t *testing.T) {
	url, err := New().PublicURL("u1/img-1")
	if err != nil || url != "memory://u1/img-1" {
		t.Fatalf("PublicURL: %v %s", err, url)
	}
}
