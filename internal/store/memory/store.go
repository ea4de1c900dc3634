// Package memory provides the in-memory row store used for tests and as
// the row engine embedded by the durable drivers. Rows are schemaless JSON
// objects; updates are merge-patches with last-write-wins semantics and no
// optimistic concurrency check, matching the hosted store this layer wraps.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"warbler/internal/feed"
	"warbler/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Snapshot captures a point-in-time clone of the store state, keyed by
// table name then row id.
type Snapshot map[string]map[string]domain.Row

// Store implements domain.Store backed by process memory. Change events are
// published to the feed hub after each successful commit, outside the
// store lock.
type Store struct {
	mu      sync.RWMutex
	tables  map[string]map[string]domain.Row
	hub     *feed.Hub
	nowFunc func() time.Time
	idFunc  func() string
}

// NewStore returns an empty store with its own feed hub.
func NewStore() *Store {
	return &Store{
		tables:  make(map[string]map[string]domain.Row),
		hub:     feed.NewHub(),
		nowFunc: func() time.Time { return time.Now().UTC() },
		idFunc:  uuid.NewString,
	}
}

// Feed returns the hub delivering this store's change events. External
// feed sources (a realtime bridge) may publish into it as well.
func (s *Store) Feed() *feed.Hub { return s.hub }

// SetNowFunc overrides the timestamp source. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) { s.nowFunc = fn }

// SetIDFunc overrides the row id generator. Intended for tests.
func (s *Store) SetIDFunc(fn func() string) { s.idFunc = fn }

// Select returns detached copies of every row matching the query.
func (s *Store) Select(_ context.Context, q domain.Query) ([]domain.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter, err := normalizeFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]domain.Row, 0)
	for _, row := range s.tables[q.Table] {
		if rowMatches(row, filter) {
			matched = append(matched, domain.CloneRow(row))
		}
	}
	s.mu.RUnlock()

	// Stable output independent of map iteration order.
	sort.Slice(matched, func(i, j int) bool {
		return domain.RowID(matched[i]) < domain.RowID(matched[j])
	})
	if q.Order != nil {
		field, desc := q.Order.Field, q.Order.Descending
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][field], matched[j][field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// SelectSingle returns the first matching row, or domain.ErrNoRows.
func (s *Store) SelectSingle(ctx context.Context, q domain.Query) (domain.Row, error) {
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", q.Table, domain.ErrNoRows)
	}
	return rows[0], nil
}

// Insert stores one row, assigning id and created_at when absent.
func (s *Store) Insert(_ context.Context, table string, row any) (domain.Row, error) {
	if table == "" {
		return nil, fmt.Errorf("memory store: insert: table required")
	}
	encoded, err := domain.EncodeRow(row)
	if err != nil {
		return nil, fmt.Errorf("memory store: insert into %s: %w", table, err)
	}
	if id, _ := encoded["id"].(string); id == "" {
		encoded["id"] = s.idFunc()
	}
	if created, _ := encoded["created_at"].(string); created == "" {
		encoded["created_at"] = s.nowFunc().Format(time.RFC3339Nano)
	}
	id := domain.RowID(encoded)

	s.mu.Lock()
	bucket := s.tables[table]
	if bucket == nil {
		bucket = make(map[string]domain.Row)
		s.tables[table] = bucket
	}
	if _, exists := bucket[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("memory store: %s row %s already exists", table, id)
	}
	bucket[id] = domain.CloneRow(encoded)
	s.mu.Unlock()

	s.publish(table, domain.ActionInsert, encoded)
	return encoded, nil
}

// Update merges patch into every row matching filter.
func (s *Store) Update(_ context.Context, table string, filter domain.Filter, patch domain.Row) (int, error) {
	normFilter, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}
	normPatch, err := domain.EncodeRow(patch)
	if err != nil {
		return 0, fmt.Errorf("memory store: update %s: %w", table, err)
	}

	s.mu.Lock()
	var touched []domain.Row
	for id, row := range s.tables[table] {
		if !rowMatches(row, normFilter) {
			continue
		}
		next := domain.CloneRow(row)
		for k, v := range normPatch {
			next[k] = v
		}
		s.tables[table][id] = next
		touched = append(touched, domain.CloneRow(next))
	}
	s.mu.Unlock()

	for _, row := range touched {
		s.publish(table, domain.ActionUpdate, row)
	}
	return len(touched), nil
}

// Delete removes every row matching filter.
func (s *Store) Delete(_ context.Context, table string, filter domain.Filter) (int, error) {
	normFilter, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	var removed []domain.Row
	for id, row := range s.tables[table] {
		if rowMatches(row, normFilter) {
			removed = append(removed, row)
			delete(s.tables[table], id)
		}
	}
	s.mu.Unlock()

	for _, row := range removed {
		s.publish(table, domain.ActionDelete, row)
	}
	return len(removed), nil
}

// Subscribe delegates to the store's feed hub.
func (s *Store) Subscribe(table, rowID string, fn func(domain.Event)) func() {
	return s.hub.Subscribe(table, rowID, fn)
}

// ExportState returns a deep clone of all tables for durable drivers.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(Snapshot, len(s.tables))
	for table, bucket := range s.tables {
		rows := make(map[string]domain.Row, len(bucket))
		for id, row := range bucket {
			rows[id] = domain.CloneRow(row)
		}
		snapshot[table] = rows
	}
	return snapshot
}

// ImportState replaces all tables with the snapshot contents. No change
// events are emitted; hydration is not a mutation.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]map[string]domain.Row, len(snapshot))
	for table, bucket := range snapshot {
		rows := make(map[string]domain.Row, len(bucket))
		for id, row := range bucket {
			rows[id] = domain.CloneRow(row)
		}
		s.tables[table] = rows
	}
}

func (s *Store) publish(table string, action domain.Action, row domain.Row) {
	payload, err := domain.NewEventPayloadFromRow(row)
	if err != nil {
		payload = domain.EventPayload{}
	}
	s.hub.Publish(domain.Event{
		Table:   table,
		Action:  action,
		RowID:   domain.RowID(row),
		Payload: payload,
	})
}

func normalizeFilter(filter domain.Filter) (domain.Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	norm := make(domain.Filter, len(filter))
	for field, value := range filter {
		nv, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("memory store: filter %s: %w", field, err)
		}
		norm[field] = nv
	}
	return norm, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func rowMatches(row domain.Row, filter domain.Filter) bool {
	for field, want := range filter {
		if !reflect.DeepEqual(row[field], want) {
			return false
		}
	}
	return true
}

// compareValues orders JSON scalars: nil first, then bools, numbers,
// strings. Strings that both parse as RFC 3339 timestamps compare as times
// so that fractional-second widths do not break ordering.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch av := a.(type) {
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			at, aerr := time.Parse(time.RFC3339Nano, av)
			bt, berr := time.Parse(time.RFC3339Nano, bv)
			if aerr == nil && berr == nil {
				return at.Compare(bt)
			}
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}
	return 0
}
