// Package core wires the configured drivers into one client handle. All
// higher-level helpers (watchers, mutations, session bootstrap) take the
// pieces they need from here, which keeps them swappable in tests.
package core

import (
	"context"
	"io"

	"warbler/internal/auth"
	"warbler/internal/blob"
	"warbler/internal/config"
	"warbler/internal/metrics"
	"warbler/internal/realtime"
	"warbler/internal/session"
	"warbler/internal/store"
	"warbler/pkg/domain"
)

// Client bundles the row store, blob store, and auth client selected by
// configuration.
type Client struct {
	Store store.FeedStore
	Blob  blob.Store
	Auth  domain.AuthClient

	adminUsername string
	stopRealtime  context.CancelFunc
}

// Open builds a client from cfg. When realtime is enabled the websocket
// bridge starts in the background and publishes into the store's feed;
// when a metrics address is set the metrics endpoint starts as well.
func Open(ctx context.Context, cfg config.Config) (*Client, error) {
	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	bl, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}
	au, err := auth.Open(cfg.Auth)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Store:         st,
		Blob:          bl,
		Auth:          au,
		adminUsername: cfg.AdminUsername,
	}
	if cfg.Realtime.Enabled {
		bridge := realtime.New(cfg.Realtime, st.Feed())
		rtCtx, cancel := context.WithCancel(ctx)
		c.stopRealtime = cancel
		go func() { _ = bridge.Run(rtCtx) }()
	}
	if cfg.MetricsAddr != "" {
		metrics.StartServer(cfg.MetricsAddr)
	}
	return c, nil
}

// NewMemoryClient returns a fully in-process client, for tests and
// ephemeral embedding.
func NewMemoryClient() *Client {
	cfg := config.Default()
	return &Client{
		Store:         memoryStore(),
		Blob:          blob.NewMemory(),
		Auth:          auth.NewLocal(),
		adminUsername: cfg.AdminUsername,
	}
}

func memoryStore() store.FeedStore {
	st, _ := store.Open(config.StorageConfig{})
	return st
}

// Session builds a bootstrap manager bound to this client's store and
// auth. Call Start on the result.
func (c *Client) Session() *session.Manager {
	var opts []session.Option
	if c.adminUsername != "" {
		opts = append(opts, session.WithAdminUsername(c.adminUsername))
	}
	return session.NewManager(c.Store, c.Auth, opts...)
}

// Close stops the realtime bridge and releases the store.
func (c *Client) Close() error {
	if c.stopRealtime != nil {
		c.stopRealtime()
	}
	if closer, ok := c.Store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
