package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/constants"
	"github.com/kozaktomas/sketch-match/internal/logging"
	"github.com/kozaktomas/sketch-match/internal/matcher"
	"github.com/kozaktomas/sketch-match/internal/metrics"
	"github.com/kozaktomas/sketch-match/internal/proxyapi"
	"github.com/kozaktomas/sketch-match/internal/storage"
)

// SketchSearcher runs a face search for an uploaded sketch.
// matcher.DirectBackend satisfies it.
type SketchSearcher interface {
	Search(ctx context.Context, probe matcher.Probe) ([]matcher.Candidate, error)
	ResolveKey(c matcher.Candidate) string
}

// SketchHandler handles sketch uploads
type SketchHandler struct {
	searcher SketchSearcher
}

// NewSketchHandler creates a new sketch handler
func NewSketchHandler(searcher SketchSearcher) *SketchHandler {
	return &SketchHandler{searcher: searcher}
}

// Upload handles POST /upload_sketch: the "sketch" part is stored and searched, and the
// best match is answered with its gallery object key.
func (h *SketchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBodySize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "sketch too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, header, err := r.FormFile(constants.SketchFormField)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "no sketch provided")
		return
	}
	defer file.Close()

	if header.Size > constants.MaxUploadSize {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusRequestEntityTooLarge, "sketch too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "failed to read sketch")
		return
	}
	name := storage.ProbeKey("", header.Filename)
	if len(data) == 0 || name == "" || name == "." || name == ".." {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "failed to process the sketch")
		return
	}

	logger = logger.With(zap.String("sketch", sanitizeForLog(name)))
	candidates, err := h.searcher.Search(r.Context(), matcher.Probe{Name: name, Data: data})
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		logger.Error("sketch search failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "face search failed")
		return
	}

	if len(candidates) == 0 {
		metrics.UploadsTotal.WithLabelValues("no_match").Inc()
		logger.Info("no match found")
		respondJSON(w, http.StatusOK, proxyapi.SketchResult{})
		return
	}

	best := candidates[0]
	result := proxyapi.SketchResult{
		MatchedImageID: h.searcher.ResolveKey(best),
		Similarity:     best.Similarity,
		Confidence:     best.Confidence,
	}
	metrics.UploadsTotal.WithLabelValues("match").Inc()
	logger.Info("match found",
		zap.String("matched_image_id", result.MatchedImageID),
		zap.Float64("similarity", result.Similarity))
	respondJSON(w, http.StatusOK, result)
}
