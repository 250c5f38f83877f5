// Package storage provides the object store holding gallery photos and uploaded sketches.
package storage

import (
	"context"
	"errors"
	"path"
	"slices"
	"strings"

	"github.com/kozaktomas/sketch-match/internal/constants"
)

// ErrNotFound is returned (wrapped) when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore lists, stores and reads binary image objects in one bucket.
type ObjectStore interface {
	// ListObjects returns the image keys under prefix; an empty prefix lists the whole
	// bucket. A prefix with no image objects yields an empty slice, not an error. Order is
	// whatever the backing store returns.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	// PutObject stores data under key, replacing any existing object.
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	// GetObject reads an object and its content type.
	GetObject(ctx context.Context, key string) ([]byte, string, error)
	// Bucket returns the bucket name used when referencing objects from other services.
	Bucket() string
}

// IsImageKey checks if a key has an allowed image extension.
func IsImageKey(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	return slices.Contains(constants.ImageExtensions, ext)
}

// ProbeKey returns the object key for an uploaded sketch: the file's base name under prefix.
func ProbeKey(prefix, filePath string) string {
	name := filePath
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return prefix + name
}
