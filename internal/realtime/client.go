// Package realtime bridges a remote change-event websocket into the local
// feed hub, so watchers refetch on server-side writes exactly as they do
// for local ones.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"warbler/internal/config"
	"warbler/internal/feed"
	"warbler/pkg/domain"
)

const (
	minBackoff  = 500 * time.Millisecond
	maxBackoff  = 30 * time.Second
	readTimeout = 90 * time.Second
)

// subscribeFrame is the first message sent on every connection.
type subscribeFrame struct {
	Type   string   `json:"type"`
	Tables []string `json:"tables"`
}

// Client maintains a websocket subscription and republishes every received
// event into the hub.
type Client struct {
	url    string
	token  string
	tables []string
	hub    *feed.Hub
	dialer *websocket.Dialer
}

// New builds a bridge client. Events for the configured tables are
// published into hub as they arrive.
func New(cfg config.RealtimeConfig, hub *feed.Hub) *Client {
	tables := cfg.Tables
	if len(tables) == 0 {
		tables = domain.Tables()
	}
	return &Client{
		url:    cfg.URL,
		token:  cfg.Token,
		tables: tables,
		hub:    hub,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run dials and reads until ctx is canceled, reconnecting with capped
// exponential backoff on any connection failure.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		if err := c.runConn(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("realtime: connection lost: %v", err)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) runConn(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	ws, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	// Close the socket when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()

	if err := ws.WriteJSON(subscribeFrame{Type: "subscribe", Tables: c.tables}); err != nil {
		return err
	}

	for {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var ev domain.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Printf("realtime: dropping malformed event: %v", err)
			continue
		}
		if ev.Table == "" {
			continue
		}
		c.hub.Publish(ev)
	}
}
