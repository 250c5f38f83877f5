// Package mock provides in-memory object store and recognizer implementations for tests.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/recognition"
	"github.com/kozaktomas/sketch-match/internal/storage"
)

type object struct {
	data        []byte
	contentType string
}

// ObjectStore is an in-memory implementation of storage.ObjectStore
type ObjectStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object

	// Error injection
	ListError error
	PutError  error
	GetError  error

	Puts []string // keys in put order
}

// NewObjectStore creates an empty store for bucket
func NewObjectStore(bucket string) *ObjectStore {
	return &ObjectStore{bucket: bucket, objects: make(map[string]object)}
}

// Add stores an object without recording it as a put
func (s *ObjectStore) Add(key string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, contentType: contentType}
}

// Bucket returns the bucket name
func (s *ObjectStore) Bucket() string {
	return s.bucket
}

// ListObjects returns image keys under prefix in lexical order, as S3 does
func (s *ObjectStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if s.ListError != nil {
		return nil, apperr.Transport("mock.list_objects", s.ListError)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && storage.IsImageKey(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// PutObject stores data under key, replacing any previous object
func (s *ObjectStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if s.PutError != nil {
		return apperr.Transport("mock.put_object", s.PutError)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: slices.Clone(data), contentType: contentType}
	s.Puts = append(s.Puts, key)
	return nil
}

// GetObject returns the object stored under key
func (s *ObjectStore) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	if s.GetError != nil {
		return nil, "", apperr.Transport("mock.get_object", s.GetError)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, "", apperr.Transport("mock.get_object", fmt.Errorf("%s: %w", key, storage.ErrNotFound))
	}
	return o.data, o.contentType, nil
}

// Recognizer is a scripted implementation of recognition.Recognizer and
// recognition.CollectionManager
type Recognizer struct {
	mu sync.Mutex

	// Faces maps an object key to the faces IndexFace reports for it
	Faces map[string][]recognition.FaceDescriptor
	// Matches is returned (after threshold and cap) by SearchByImage
	Matches []recognition.Match

	// Error injection
	IndexErrors map[string]error // per object key
	SearchError error
	EnsureError error

	Collections map[string]bool
	Indexed     []string // external ids in call order
	Searched    []recognition.ObjectRef
}

// NewRecognizer creates a recognizer with no faces and no matches
func NewRecognizer() *Recognizer {
	return &Recognizer{
		Faces:       make(map[string][]recognition.FaceDescriptor),
		IndexErrors: make(map[string]error),
		Collections: make(map[string]bool),
	}
}

// IndexFace returns the scripted faces for image.Key, stamped with externalID
func (r *Recognizer) IndexFace(ctx context.Context, collectionID string, image recognition.ObjectRef, externalID string, attrs recognition.Attributes) ([]recognition.FaceDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Indexed = append(r.Indexed, externalID)
	if err := r.IndexErrors[image.Key]; err != nil {
		return nil, apperr.Service("mock.index_faces", err)
	}

	faces := make([]recognition.FaceDescriptor, 0, len(r.Faces[image.Key]))
	for _, f := range r.Faces[image.Key] {
		f.ExternalID = externalID
		faces = append(faces, f)
	}
	return faces, nil
}

// SearchByImage returns the scripted matches filtered by threshold and cap
func (r *Recognizer) SearchByImage(ctx context.Context, collectionID string, image recognition.ObjectRef, minSimilarity float64, maxResults int) ([]recognition.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Searched = append(r.Searched, image)
	if r.SearchError != nil {
		return nil, apperr.Service("mock.search_faces_by_image", r.SearchError)
	}
	return recognition.LimitMatches(r.Matches, minSimilarity, maxResults), nil
}

// EnsureCollection marks the collection as existing
func (r *Recognizer) EnsureCollection(ctx context.Context, collectionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.EnsureError != nil {
		return false, apperr.Service("mock.ensure_collection", r.EnsureError)
	}
	if r.Collections[collectionID] {
		return false, nil
	}
	r.Collections[collectionID] = true
	return true, nil
}

var (
	_ storage.ObjectStore           = (*ObjectStore)(nil)
	_ recognition.Recognizer        = (*Recognizer)(nil)
	_ recognition.CollectionManager = (*Recognizer)(nil)
)
