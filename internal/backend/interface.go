// Package backend builds the configured data source.
package backend

import (
	"context"
	"time"

	"expensedash/internal/ports"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the backend instance and its lifecycle hooks
type BackendResult struct {
	Backend ports.Backend
	Cleanup CleanupFunc
	Ready   ReadyFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Memory and SQLite category seed directory
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Remote specific
	RemoteAPIURL  string
	RemoteTimeout time.Duration
	Location      *time.Location
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	RemoteBackend BackendType = "remote"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, RemoteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
