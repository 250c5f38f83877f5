package database

import (
	"time"
)

// Entry records one indexed object: the external image id it was indexed under and the
// ids of the faces found in it. Entries are keyed by collection and object key.
type Entry struct {
	ExternalID   string
	ObjectKey    string
	CollectionID string
	FaceIDs      []string // empty when no face was detected
	IndexedAt    time.Time
}

// HasFaces reports whether the indexed image produced at least one face
func (e Entry) HasFaces() bool {
	return len(e.FaceIDs) > 0
}
