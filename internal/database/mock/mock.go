// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/sketch-match/internal/database"
)

// MockRegistry is an in-memory implementation of database.RegistryWriter
type MockRegistry struct {
	mu      sync.RWMutex
	entries map[string]database.Entry

	// Error injection
	LookupError error
	ListError   error
	CountError  error
	RecordError error
	DeleteError error

	RecordCalls int
}

// NewMockRegistry creates a new mock registry
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		entries: make(map[string]database.Entry),
	}
}

func entryKey(collectionID, objectKey string) string {
	return collectionID + "\x00" + objectKey
}

// AddEntry adds an entry to the mock store without counting it as a Record call
func (m *MockRegistry) AddEntry(e database.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(e.CollectionID, e.ObjectKey)] = e
}

// Lookup returns the entry for an object key
func (m *MockRegistry) Lookup(ctx context.Context, collectionID, objectKey string) (*database.Entry, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryKey(collectionID, objectKey)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// LookupFace returns the entry holding faceID
func (m *MockRegistry) LookupFace(ctx context.Context, collectionID, faceID string) (*database.Entry, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.CollectionID == collectionID && slices.Contains(e.FaceIDs, faceID) {
			return &e, nil
		}
	}
	return nil, nil
}

// ListByExternalID returns the entries indexed under externalID, ordered by object key
func (m *MockRegistry) ListByExternalID(ctx context.Context, collectionID, externalID string) ([]database.Entry, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.Entry
	for _, e := range m.entries {
		if e.CollectionID == collectionID && e.ExternalID == externalID {
			out = append(out, e)
		}
	}
	sortByObjectKey(out)
	return out, nil
}

// List returns entries whose object key starts with prefix, ordered by object key
func (m *MockRegistry) List(ctx context.Context, prefix string) ([]database.Entry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.Entry
	for _, e := range m.entries {
		if strings.HasPrefix(e.ObjectKey, prefix) {
			out = append(out, e)
		}
	}
	sortByObjectKey(out)
	return out, nil
}

func sortByObjectKey(entries []database.Entry) {
	slices.SortFunc(entries, func(a, b database.Entry) int {
		return strings.Compare(a.ObjectKey, b.ObjectKey)
	})
}

// Count returns the number of entries
func (m *MockRegistry) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Record stores an entry, replacing any previous one for the same collection and object key
func (m *MockRegistry) Record(ctx context.Context, e database.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCalls++
	if m.RecordError != nil {
		return m.RecordError
	}
	if e.IndexedAt.IsZero() {
		e.IndexedAt = time.Now()
	}
	m.entries[entryKey(e.CollectionID, e.ObjectKey)] = e
	return nil
}

// Delete removes an entry
func (m *MockRegistry) Delete(ctx context.Context, collectionID, objectKey string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, entryKey(collectionID, objectKey))
	return nil
}

var _ database.RegistryWriter = (*MockRegistry)(nil)
