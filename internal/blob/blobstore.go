// Package blob re-exports the blob storage abstractions and selects a
// concrete driver from configuration.
package blob

import (
	"context"
	"fmt"

	"warbler/internal/blob/core"
	"warbler/internal/blob/fs"
	"warbler/internal/blob/memory"
	"warbler/internal/blob/s3"
	"warbler/internal/config"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// NewMemory returns an in-memory blob store suitable for tests.
func NewMemory() Store { return memory.New() }

// Open selects a backend from the blob configuration. Defaults to the
// filesystem driver when no driver is set.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot, cfg.FSBaseURL)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
