package matcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/constants"
	"github.com/kozaktomas/sketch-match/internal/database"
	"github.com/kozaktomas/sketch-match/internal/recognition"
	"github.com/kozaktomas/sketch-match/internal/storage"
)

// DirectBackend uploads the sketch to the object store and searches the collection.
type DirectBackend struct {
	store      storage.ObjectStore
	recognizer recognition.Recognizer
	registry   database.RegistryReader // optional
	cfg        *config.Config
	logger     *zap.Logger
}

// NewDirectBackend creates a direct backend. registry may be nil.
func NewDirectBackend(cfg *config.Config, store storage.ObjectStore, recognizer recognition.Recognizer, registry database.RegistryReader, logger *zap.Logger) *DirectBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectBackend{
		store:      store,
		recognizer: recognizer,
		registry:   registry,
		cfg:        cfg,
		logger:     logger,
	}
}

// Name returns "direct".
func (b *DirectBackend) Name() string {
	return config.BackendDirect
}

// Search stores the probe under its base name (plus the probe prefix) and searches the
// collection with it. The probe object is left in the store.
func (b *DirectBackend) Search(ctx context.Context, probe Probe) ([]Candidate, error) {
	key := storage.ProbeKey(b.cfg.Storage.ProbePrefix, probe.Name)
	if err := b.store.PutObject(ctx, key, probe.Data, constants.ProbeContentType); err != nil {
		return nil, err
	}

	matches, err := b.recognizer.SearchByImage(ctx,
		b.cfg.Recognition.CollectionID,
		recognition.ObjectRef{Bucket: b.store.Bucket(), Key: key},
		b.cfg.Recognition.MinSimilarity,
		b.cfg.Recognition.MaxResults,
	)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Candidate{
			ExternalID: m.ExternalID,
			ObjectKey:  b.lookupKey(ctx, m),
			FaceID:     m.FaceID,
			Similarity: m.Similarity,
			Confidence: m.Confidence,
		})
	}
	return candidates, nil
}

// lookupKey returns the original object key of the photo holding the matched face, or ""
// when the registry is not configured or does not know the face. External ids are not
// unique across keys, so the face id is the lookup key.
func (b *DirectBackend) lookupKey(ctx context.Context, m recognition.Match) string {
	if b.registry == nil || m.FaceID == "" {
		return ""
	}
	entry, err := b.registry.LookupFace(ctx, b.cfg.Recognition.CollectionID, m.FaceID)
	if err != nil {
		b.logger.Warn("registry lookup failed, falling back to id transform",
			zap.String("external_id", m.ExternalID), zap.String("face_id", m.FaceID), zap.Error(err))
		return ""
	}
	if entry == nil {
		return ""
	}
	return entry.ObjectKey
}

// ResolveKey returns the gallery object key of a candidate.
func (b *DirectBackend) ResolveKey(c Candidate) string {
	if c.ObjectKey != "" {
		return c.ObjectKey
	}
	return DisplayKey(c.ExternalID, b.cfg.Recognition.PrefixToken, b.cfg.Storage.GalleryPrefix)
}

// DisplayURL returns the public object URL of the candidate's gallery photo.
func (b *DirectBackend) DisplayURL(c Candidate) string {
	return b.cfg.ObjectURL(b.ResolveKey(c))
}

// FetchImage reads the candidate's gallery photo from the object store.
func (b *DirectBackend) FetchImage(ctx context.Context, c Candidate) ([]byte, error) {
	data, _, err := b.store.GetObject(ctx, b.ResolveKey(c))
	if err != nil {
		return nil, err
	}
	return data, nil
}
