// Package recognition talks to the face recognition service: indexing gallery faces
// into a collection and searching that collection with a probe image.
package recognition

import (
	"context"
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/sketch-match/internal/constants"
)

// Attributes selects how many facial attributes the service returns when indexing.
type Attributes string

// Attributes values.
const (
	AttributesDefault Attributes = "DEFAULT"
	AttributesAll     Attributes = "ALL"
)

// ObjectRef points at an image stored in the object store.
type ObjectRef struct {
	Bucket string
	Key    string
}

// BoundingBox is the face area relative to the image size (0-1).
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceDescriptor describes one face registered in a collection.
type FaceDescriptor struct {
	FaceID      string      `json:"face_id"`
	ImageID     string      `json:"image_id"`
	ExternalID  string      `json:"external_id"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
	AgeLow      int         `json:"age_low,omitempty"`  // only with AttributesAll
	AgeHigh     int         `json:"age_high,omitempty"` // only with AttributesAll
	Gender      string      `json:"gender,omitempty"`   // only with AttributesAll
	Emotion     string      `json:"emotion,omitempty"`  // most confident emotion, only with AttributesAll
}

// Match is one registered face similar to the probe.
type Match struct {
	FaceID     string  `json:"face_id"`
	ExternalID string  `json:"external_id"`
	Similarity float64 `json:"similarity"` // 0-100
	Confidence float64 `json:"confidence"` // 0-100, detection confidence of the registered face
}

// Recognizer indexes and searches faces in a named collection. Implementations hold no
// state across calls.
type Recognizer interface {
	// IndexFace registers every face detected in image under externalID. An empty result
	// means no face was detected and is not an error.
	IndexFace(ctx context.Context, collectionID string, image ObjectRef, externalID string, attrs Attributes) ([]FaceDescriptor, error)
	// SearchByImage returns at most maxResults registered faces with similarity of at
	// least minSimilarity, in the order the service ranked them.
	SearchByImage(ctx context.Context, collectionID string, image ObjectRef, minSimilarity float64, maxResults int) ([]Match, error)
}

// CollectionManager creates collections on demand.
type CollectionManager interface {
	// EnsureCollection creates the collection if it does not exist and reports whether it did.
	EnsureCollection(ctx context.Context, collectionID string) (bool, error)
}

var disallowedIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-:]`)

// SanitizeExternalID derives the external image id for an object key: diacritics are
// folded ("José" -> "Jose"), every remaining character outside [a-zA-Z0-9_.-:] becomes
// '_', and the result is cut to the length the service accepts.
func SanitizeExternalID(key string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}
	id := disallowedIDChars.ReplaceAllString(folded, "_")
	if len(id) > constants.MaxExternalIDLength {
		id = id[:constants.MaxExternalIDLength]
	}
	return id
}

// LimitMatches drops matches below minSimilarity and truncates to maxResults, keeping
// the order given. maxResults <= 0 means no cap.
func LimitMatches(matches []Match, minSimilarity float64, maxResults int) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < minSimilarity {
			continue
		}
		out = append(out, m)
		if maxResults > 0 && len(out) == maxResults {
			break
		}
	}
	return out
}
