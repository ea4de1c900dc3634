// Package sqlite provides an embedded, file-backed row store. It reuses
// the in-memory engine for queries and change events and persists per-table
// JSON buckets to a sqlite database after each successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // register the pure-Go sqlite driver

	"warbler/internal/store/memory"
	"warbler/pkg/domain"
)

var _ domain.Store = (*Store)(nil)

const defaultPath = "./warbler.db"

// Store persists state to a sqlite file while delegating row semantics to
// the embedded in-memory store.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (or creates) the sqlite file at path, hydrating the
// in-memory engine from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	ctx := context.Background()
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert stores a row, then snapshots to disk.
func (s *Store) Insert(ctx context.Context, table string, row any) (domain.Row, error) {
	stored, err := s.Store.Insert(ctx, table, row)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update merges a patch, then snapshots to disk.
func (s *Store) Update(ctx context.Context, table string, filter domain.Filter, patch domain.Row) (int, error) {
	n, err := s.Store.Update(ctx, table, filter, patch)
	if err != nil || n == 0 {
		return n, err
	}
	return n, s.persist(ctx)
}

// Delete removes rows, then snapshots to disk.
func (s *Store) Delete(ctx context.Context, table string, filter domain.Filter) (int, error) {
	n, err := s.Store.Delete(ctx, table, filter)
	if err != nil || n == 0 {
		return n, err
	}
	return n, s.persist(ctx)
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := make(memory.Snapshot)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var table map[string]domain.Row
		if err := json.Unmarshal(payload, &table); err != nil {
			return nil, fmt.Errorf("decode %s: %w", bucket, err)
		}
		snapshot[bucket] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range persistBuckets(snapshot) {
		data, err := json.Marshal(snapshot[bucket])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// persistBuckets lists every schema table plus any extra snapshot bucket so
// that emptied tables overwrite their stored payload.
func persistBuckets(snapshot memory.Snapshot) []string {
	buckets := domain.Tables()
	known := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		known[b] = true
	}
	for b := range snapshot {
		if !known[b] {
			buckets = append(buckets, b)
		}
	}
	return buckets
}
