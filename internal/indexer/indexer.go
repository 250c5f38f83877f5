// Package indexer registers every gallery photo's faces in the recognition collection.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/database"
	"github.com/kozaktomas/sketch-match/internal/metrics"
	"github.com/kozaktomas/sketch-match/internal/recognition"
	"github.com/kozaktomas/sketch-match/internal/storage"
)

// Options configures one indexing run.
type Options struct {
	CollectionID string
	Attributes   recognition.Attributes
	DryRun       bool // list and sanitize only, no IndexFace calls
}

// Failure records a gallery image that could not be indexed.
type Failure struct {
	Key string
	Err error
}

// Report summarizes an indexing run.
type Report struct {
	Total    int // image keys found under the prefix
	Indexed  int // images with at least one face
	NoFace   int // images where no face was detected
	Faces    int // face records created
	SharedID int // images whose external id is already registered for another key
	Failures []Failure
	Duration time.Duration
}

// Failed returns the number of images that could not be indexed.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// ProgressFunc is called after each key is processed.
type ProgressFunc func(done, total int, key string)

// Indexer walks the gallery and indexes one image at a time.
type Indexer struct {
	store      storage.ObjectStore
	recognizer recognition.Recognizer
	registry   database.RegistryWriter // optional
	logger     *zap.Logger
}

// New creates an indexer. registry may be nil.
func New(store storage.ObjectStore, recognizer recognition.Recognizer, registry database.RegistryWriter, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{store: store, recognizer: recognizer, registry: registry, logger: logger}
}

// Run indexes every image under prefix sequentially. A listing failure aborts the run;
// a failure on one image is logged, counted and skipped. There are no retries.
func (ix *Indexer) Run(ctx context.Context, prefix string, opts Options, progress ProgressFunc) (*Report, error) {
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	keys, err := ix.store.ListObjects(ctx, prefix)
	if err != nil {
		return report, fmt.Errorf("list gallery %q: %w", prefix, err)
	}
	report.Total = len(keys)
	ix.logger.Info("indexing gallery",
		zap.String("prefix", prefix),
		zap.String("collection", opts.CollectionID),
		zap.Int("images", len(keys)),
		zap.Bool("dry_run", opts.DryRun))

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ix.indexOne(ctx, key, opts, report)

		if progress != nil {
			progress(i+1, len(keys), key)
		}
	}

	ix.logger.Info("indexing finished",
		zap.Int("indexed", report.Indexed),
		zap.Int("no_face", report.NoFace),
		zap.Int("failed", report.Failed()),
		zap.Int("faces", report.Faces))
	return report, nil
}

func (ix *Indexer) indexOne(ctx context.Context, key string, opts Options, report *Report) {
	externalID := recognition.SanitizeExternalID(key)
	logger := ix.logger.With(zap.String("key", key), zap.String("external_id", externalID))

	if opts.DryRun {
		logger.Info("would index image")
		return
	}

	faces, err := ix.recognizer.IndexFace(ctx, opts.CollectionID,
		recognition.ObjectRef{Bucket: ix.store.Bucket(), Key: key}, externalID, opts.Attributes)
	if err != nil {
		metrics.FacesIndexedTotal.WithLabelValues("failed").Inc()
		logger.Error("failed to index image", zap.Error(err))
		report.Failures = append(report.Failures, Failure{Key: key, Err: err})
		return
	}

	faceIDs := make([]string, 0, len(faces))
	if len(faces) == 0 {
		metrics.FacesIndexedTotal.WithLabelValues("no_face").Inc()
		logger.Info("no faces detected in image")
		report.NoFace++
	} else {
		metrics.FacesIndexedTotal.WithLabelValues("indexed").Inc()
		logger.Info("added faces to collection", zap.Int("faces", len(faces)))
		for _, f := range faces {
			logger.Info("face indexed", zap.String("face_id", f.FaceID), zap.Float64("confidence", f.Confidence))
			faceIDs = append(faceIDs, f.FaceID)
		}
		report.Indexed++
		report.Faces += len(faces)
	}

	if ix.registry == nil {
		return
	}
	ix.checkSharedID(ctx, logger, key, externalID, opts.CollectionID, report)

	entry := database.Entry{
		ExternalID:   externalID,
		ObjectKey:    key,
		CollectionID: opts.CollectionID,
		FaceIDs:      faceIDs,
	}
	if err := ix.registry.Record(ctx, entry); err != nil {
		// The faces are in the collection; only the reverse mapping is missing.
		logger.Warn("failed to record registry entry", zap.Error(err))
	}
}

// checkSharedID warns when another object key was indexed under the same external id.
// Matches on either photo still resolve through their face ids.
func (ix *Indexer) checkSharedID(ctx context.Context, logger *zap.Logger, key, externalID, collectionID string, report *Report) {
	entries, err := ix.registry.ListByExternalID(ctx, collectionID, externalID)
	if err != nil {
		logger.Warn("failed to check registry for shared external id", zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.ObjectKey != key {
			logger.Warn("external id already used by another object",
				zap.String("other_key", e.ObjectKey))
			report.SharedID++
			return
		}
	}
}
