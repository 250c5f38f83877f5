package web

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/metrics"
	"github.com/kozaktomas/sketch-match/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	metrics.Register()

	sketchHandler := handlers.NewSketchHandler(s.searcher)
	imagesHandler := handlers.NewImagesHandler(s.store, s.config.Storage.GalleryPrefix)

	s.router.Get("/api/v1/health", handlers.HealthCheck(config.BackendDirect))
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/upload_sketch", sketchHandler.Upload)

	// Gallery photos by id, relative to the gallery prefix
	s.router.Get("/{imageID}", imagesHandler.Get)
}
