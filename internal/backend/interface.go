package backend

import (
	"context"

	"biblioteca/internal/services"
)

// Backend persists the library state between runs. Load and Save log their
// failures instead of returning them: a broken store must not stop the
// application from serving.
type Backend interface {
	Load(ctx context.Context, svc *services.LibraryService)
	Save(ctx context.Context, svc *services.LibraryService)
	Close() error
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// json backend
	DataDirectory string

	// sqlite backend
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	JSONBackend   BackendType = "json"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
