// Package store selects a concrete row-store driver from configuration.
package store

import (
	"fmt"

	"warbler/internal/config"
	"warbler/internal/feed"
	"warbler/internal/store/memory"
	"warbler/internal/store/postgres"
	"warbler/internal/store/sqlite"
	"warbler/pkg/domain"
)

// Driver identifies a concrete row-store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// FeedStore is a row store exposing its change-feed hub so external feed
// sources can publish into it.
type FeedStore interface {
	domain.Store
	Feed() *feed.Hub
}

// Open selects a backend from the storage configuration. Defaults to
// memory when no driver is set.
func Open(cfg config.StorageConfig) (FeedStore, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}
	switch driver {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case DriverPostgres:
		return postgres.NewStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
