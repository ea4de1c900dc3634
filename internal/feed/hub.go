// Package feed fans change events out to table-wide and row-scoped
// subscribers. Every subscription is independent: the same event reaches
// each registered callback, with no deduplication across watchers.
package feed

import (
	"sync"

	"warbler/internal/metrics"
	"warbler/pkg/domain"
)

type subscriber struct {
	id int64
	fn func(domain.Event)
}

// Hub is an in-process change-event dispatcher. Callback slices are copied
// on write so Publish never holds the lock while invoking callbacks.
type Hub struct {
	mu     sync.Mutex
	nextID int64
	topics map[string][]subscriber
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string][]subscriber)}
}

func topicKey(table, rowID string) string {
	if rowID == "" {
		return table
	}
	return table + ":" + rowID
}

// Subscribe registers fn for events on a table, scoped to one row when
// rowID is non-empty. The returned cancel is idempotent.
func (h *Hub) Subscribe(table, rowID string, fn func(domain.Event)) func() {
	key := topicKey(table, rowID)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	next := make([]subscriber, 0, len(h.topics[key])+1)
	next = append(next, h.topics[key]...)
	next = append(next, subscriber{id: id, fn: fn})
	h.topics[key] = next
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		current := h.topics[key]
		for i, sub := range current {
			if sub.id != id {
				continue
			}
			next := make([]subscriber, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			if len(next) == 0 {
				delete(h.topics, key)
			} else {
				h.topics[key] = next
			}
			return
		}
	}
}

// Publish delivers ev to the row-scoped subscribers of its row and to the
// table-wide subscribers of its table, in registration order.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.Lock()
	subs := make([]subscriber, 0)
	if ev.RowID != "" {
		subs = append(subs, h.topics[topicKey(ev.Table, ev.RowID)]...)
	}
	subs = append(subs, h.topics[ev.Table]...)
	h.mu.Unlock()

	metrics.FeedEvents.WithLabelValues(ev.Table, string(ev.Action)).Inc()
	for _, sub := range subs {
		sub.fn(ev)
	}
}
