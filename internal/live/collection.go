package live

import (
	"context"
	"log"
	"sync"

	"warbler/internal/metrics"
	"warbler/pkg/domain"
)

// CollectionOptions configures a collection watcher.
type CollectionOptions struct {
	IncludeUser bool // also fetch each row's creator from the users table
	AllowNull   bool // an empty result yields nil instead of an empty slice
	Disabled    bool // never fetch or subscribe
	Preserve    bool // keep the previous data visible while refetching
}

// Entry pairs a decoded row with its creator when IncludeUser is set.
type Entry[T any] struct {
	Data T
	User *domain.User
}

// CollectionSnapshot is the current state of a watched query. Data is nil
// while loading, after a fetch error, and for an empty result under
// AllowNull; otherwise it is a non-nil slice.
type CollectionSnapshot[T any] struct {
	Data    []Entry[T]
	Loading bool
}

// Collection watches the result set of a query. Every change event on the
// query's table triggers a full refetch.
type Collection[T any] struct {
	ctx   context.Context
	store domain.Store
	query domain.Query
	opts  CollectionOptions

	mu        sync.Mutex
	snapshot  CollectionSnapshot[T]
	nextID    int
	callbacks map[int]func(CollectionSnapshot[T])
	unsub     func()
}

// WatchCollection fetches the query once and subscribes to change events
// on its table. A disabled watcher produces a settled snapshot with no
// data and no subscription. The query is validated up front.
func WatchCollection[T any](ctx context.Context, store domain.Store, query domain.Query, opts CollectionOptions) (*Collection[T], error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	c := &Collection[T]{
		ctx:       ctx,
		store:     store,
		query:     query,
		opts:      opts,
		callbacks: make(map[int]func(CollectionSnapshot[T])),
	}
	if opts.Disabled {
		return c, nil
	}
	c.snapshot.Loading = true
	c.refetch()
	c.unsub = store.Subscribe(query.Table, "", func(domain.Event) {
		if !c.opts.Preserve {
			// Surface the clearing so watchers can render a spinner.
			c.publish(CollectionSnapshot[T]{Loading: true})
		}
		c.refetch()
	})
	return c, nil
}

// Snapshot returns the current state.
func (c *Collection[T]) Snapshot() CollectionSnapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// OnChange registers fn for snapshot updates. The returned cancel is
// idempotent.
func (c *Collection[T]) OnChange(fn func(CollectionSnapshot[T])) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.callbacks[id] = fn
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.callbacks, id)
			c.mu.Unlock()
		})
	}
}

// Close cancels the change subscription. Snapshot stays readable.
func (c *Collection[T]) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}

func (c *Collection[T]) refetch() {
	metrics.Refetches.WithLabelValues(c.query.Table).Inc()

	rows, err := c.store.Select(c.ctx, c.query)
	if err != nil {
		log.Printf("live: fetch %s: %v", c.query.Table, err)
		c.publish(CollectionSnapshot[T]{})
		return
	}
	if c.opts.AllowNull && len(rows) == 0 {
		c.publish(CollectionSnapshot[T]{})
		return
	}

	entries := make([]Entry[T], 0, len(rows))
	for _, row := range rows {
		value, err := domain.DecodeRow[T](row)
		if err != nil {
			log.Printf("live: decode %s row %s: %v", c.query.Table, domain.RowID(row), err)
			c.publish(CollectionSnapshot[T]{})
			return
		}
		entry := Entry[T]{Data: value}
		if c.opts.IncludeUser {
			user, err := fetchCreator(c.ctx, c.store, row)
			if err != nil {
				log.Printf("live: fetch creator for %s row %s: %v", c.query.Table, domain.RowID(row), err)
				c.publish(CollectionSnapshot[T]{})
				return
			}
			entry.User = user
		}
		entries = append(entries, entry)
	}
	c.publish(CollectionSnapshot[T]{Data: entries})
}

func (c *Collection[T]) publish(next CollectionSnapshot[T]) {
	c.mu.Lock()
	c.snapshot = next
	fns := make([]func(CollectionSnapshot[T]), 0, len(c.callbacks))
	for _, fn := range c.callbacks {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}
