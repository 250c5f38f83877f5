package database

import (
	"context"
)

// RegistryReader provides read-only access to the face registry
type RegistryReader interface {
	// Lookup returns the entry for an object key in a collection, nil if it was never indexed
	Lookup(ctx context.Context, collectionID, objectKey string) (*Entry, error)
	// LookupFace returns the entry whose face ids contain faceID, nil if no entry does
	LookupFace(ctx context.Context, collectionID, faceID string) (*Entry, error)
	// ListByExternalID returns every entry indexed under externalID, ordered by object key.
	// More than one entry means several object keys sanitize to the same id.
	ListByExternalID(ctx context.Context, collectionID, externalID string) ([]Entry, error)
	// List returns all entries whose object key starts with prefix, ordered by object key
	List(ctx context.Context, prefix string) ([]Entry, error)
	// Count returns the number of registered object keys
	Count(ctx context.Context) (int, error)
}

// RegistryWriter provides write access to the face registry
type RegistryWriter interface {
	RegistryReader

	// Record stores an entry, replacing any previous entry for the same collection and
	// object key. Re-indexing an image keeps only the latest face ids.
	Record(ctx context.Context, entry Entry) error

	// Delete removes the entry for an object key. Deleting a missing entry is not an error.
	Delete(ctx context.Context, collectionID, objectKey string) error
}
