// Package live provides watchers that keep a decoded view of a row or a
// query result set current by refetching whenever a change event arrives
// for the watched scope.
package live

import (
	"context"
	"errors"
	"log"
	"sync"

	"warbler/internal/metrics"
	"warbler/pkg/domain"
)

// NullID is the sentinel id meaning "nothing to watch". Callers that
// render a pinned-tweet style reference pass it through verbatim.
const NullID = "null"

// DocumentOptions configures a document watcher.
type DocumentOptions struct {
	IncludeUser bool // also fetch the row's creator from the users table
	AllowNull   bool // a missing row is expected, not logged
	Disabled    bool // never fetch or subscribe
}

// DocumentSnapshot is the current state of a watched row. Data is nil
// while loading and when the row is missing. User is set only when the
// watcher was created with IncludeUser.
type DocumentSnapshot[T any] struct {
	Data    *T
	User    *domain.User
	Loading bool
}

// Document watches a single row by id. Every change event scoped to the
// row triggers a full refetch.
type Document[T any] struct {
	ctx   context.Context
	store domain.Store
	table string
	id    string
	opts  DocumentOptions

	mu        sync.Mutex
	snapshot  DocumentSnapshot[T]
	nextID    int
	callbacks map[int]func(DocumentSnapshot[T])
	unsub     func()
}

// WatchDocument fetches the row once and subscribes to its change events.
// A disabled watcher, an empty id, or the "null" sentinel produce a
// settled snapshot with no data and no subscription.
func WatchDocument[T any](ctx context.Context, store domain.Store, table, id string, opts DocumentOptions) *Document[T] {
	d := &Document[T]{
		ctx:       ctx,
		store:     store,
		table:     table,
		id:        id,
		opts:      opts,
		callbacks: make(map[int]func(DocumentSnapshot[T])),
	}
	if opts.Disabled || id == "" || id == NullID {
		return d
	}
	d.snapshot.Loading = true
	d.refetch()
	d.unsub = store.Subscribe(table, id, func(domain.Event) { d.refetch() })
	return d
}

// Snapshot returns the current state.
func (d *Document[T]) Snapshot() DocumentSnapshot[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// OnChange registers fn for snapshot updates. The returned cancel is
// idempotent.
func (d *Document[T]) OnChange(fn func(DocumentSnapshot[T])) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.callbacks[id] = fn
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.callbacks, id)
			d.mu.Unlock()
		})
	}
}

// Close cancels the change subscription. Snapshot stays readable.
func (d *Document[T]) Close() {
	if d.unsub != nil {
		d.unsub()
	}
}

func (d *Document[T]) refetch() {
	metrics.Refetches.WithLabelValues(d.table).Inc()
	next := DocumentSnapshot[T]{}

	row, err := d.store.SelectSingle(d.ctx, domain.ByID(d.table, d.id))
	if err != nil {
		if !d.opts.AllowNull && !errors.Is(err, domain.ErrNoRows) {
			log.Printf("live: fetch %s/%s: %v", d.table, d.id, err)
		} else if !d.opts.AllowNull {
			log.Printf("live: %s/%s not found", d.table, d.id)
		}
		d.publish(next)
		return
	}

	value, err := domain.DecodeRow[T](row)
	if err != nil {
		log.Printf("live: decode %s/%s: %v", d.table, d.id, err)
		d.publish(next)
		return
	}
	next.Data = &value

	if d.opts.IncludeUser {
		user, err := fetchCreator(d.ctx, d.store, row)
		if err != nil {
			log.Printf("live: fetch creator for %s/%s: %v", d.table, d.id, err)
			d.publish(DocumentSnapshot[T]{})
			return
		}
		next.User = user
	}
	d.publish(next)
}

func (d *Document[T]) publish(next DocumentSnapshot[T]) {
	d.mu.Lock()
	d.snapshot = next
	fns := make([]func(DocumentSnapshot[T]), 0, len(d.callbacks))
	for _, fn := range d.callbacks {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}

// fetchCreator loads the users row referenced by the created_by column.
func fetchCreator(ctx context.Context, store domain.Store, row domain.Row) (*domain.User, error) {
	createdBy, _ := row["created_by"].(string)
	if createdBy == "" {
		return nil, errors.New("row has no created_by")
	}
	userRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableUsers, createdBy))
	if err != nil {
		return nil, err
	}
	user, err := domain.DecodeRow[domain.User](userRow)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
