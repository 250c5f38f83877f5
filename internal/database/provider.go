package database

import (
	"context"
	"errors"
	"sync"
)

var (
	registryMu          sync.RWMutex
	postgresRegistry    func() RegistryWriter
	postgresInitialized bool
)

// ErrNotInitialized is returned when no registry backend has been registered.
var ErrNotInitialized = errors.New("face registry not initialized: DATABASE_URL is required")

// RegisterPostgresBackend registers the PostgreSQL registry constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(registry func() RegistryWriter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	postgresRegistry = registry
	postgresInitialized = registry != nil
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return postgresInitialized
}

// GetRegistry returns the registry from the PostgreSQL backend
func GetRegistry(ctx context.Context) (RegistryWriter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if !postgresInitialized || postgresRegistry == nil {
		return nil, ErrNotInitialized
	}
	return postgresRegistry(), nil
}
