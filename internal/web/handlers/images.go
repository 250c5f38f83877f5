package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/logging"
	"github.com/kozaktomas/sketch-match/internal/storage"
)

// ImagesHandler serves gallery photos by image id
type ImagesHandler struct {
	store         storage.ObjectStore
	galleryPrefix string
}

// NewImagesHandler creates a handler reading <galleryPrefix><imageID> from store
func NewImagesHandler(store storage.ObjectStore, galleryPrefix string) *ImagesHandler {
	return &ImagesHandler{store: store, galleryPrefix: galleryPrefix}
}

// Get handles GET /{imageID}
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "imageID")
	if imageID == "" || strings.Contains(imageID, "..") || strings.ContainsAny(imageID, `/\`) {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	data, contentType, err := h.store.GetObject(r.Context(), h.galleryPrefix+imageID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to fetch image",
			zap.String("image_id", sanitizeForLog(imageID)), zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to fetch image")
		return
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}
