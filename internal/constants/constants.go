// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Search constants
const (
	// DefaultMinSimilarity is the minimum similarity (0-100) a face match must reach
	DefaultMinSimilarity = 70.0

	// DefaultMaxResults caps the number of face matches returned for one probe
	DefaultMaxResults = 3
)

// Naming constants
const (
	// DefaultGalleryPrefix is the bucket folder holding the reference photos
	DefaultGalleryPrefix = "Photos/"

	// DefaultExternalIDPrefixToken is the sanitized form of DefaultGalleryPrefix as it
	// appears at the start of an external image id ("Photos/a.jpg" -> "Photos_a.jpg")
	DefaultExternalIDPrefixToken = "Photos_"

	// DefaultProxyPrefixToken is stripped from ids returned by the local proxy API
	// before the matched image is requested
	DefaultProxyPrefixToken = "Photos/"

	// DefaultCollectionID is the recognition collection holding indexed faces
	DefaultCollectionID = "Records"

	// MaxExternalIDLength is the longest external image id the recognition service accepts
	MaxExternalIDLength = 255
)

// Upload constants
const (
	// MaxUploadSize is the maximum size of a sketch accepted by the proxy API (32 MiB)
	MaxUploadSize = 32 << 20

	// MaxUploadBodySize bounds a whole upload request: one sketch plus multipart framing
	MaxUploadBodySize = MaxUploadSize + 1<<20

	// ProbeContentType is the content type recorded for uploaded probe images
	ProbeContentType = "image/jpeg"

	// SketchFormField is the multipart part name carrying the sketch
	SketchFormField = "sketch"
)

// ImageExtensions is the allow-list of gallery object extensions.
var ImageExtensions = []string{".jpg", ".jpeg", ".png"}
