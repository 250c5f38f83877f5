// Package metrics holds the Prometheus collectors for backend calls and indexing.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backend call metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sketchmatch",
			Name:      "backend_requests_total",
			Help:      "Total number of calls to the object store, recognition service and proxy API",
		},
		[]string{"backend", "operation", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sketchmatch",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "operation"},
	)

	FacesIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sketchmatch",
			Name:      "faces_indexed_total",
			Help:      "Gallery images processed by the indexer",
		},
		[]string{"result"}, // "indexed" / "no_face" / "failed"
	)

	MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sketchmatch",
			Name:      "matches_total",
			Help:      "Sketch searches by outcome",
		},
		[]string{"outcome"}, // "match" / "no_match" / "error"
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sketchmatch",
			Name:      "http_uploads_total",
			Help:      "Sketches received on POST /upload_sketch",
		},
		[]string{"status"}, // "match" / "no_match" / "rejected" / "error"
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(BackendRequestsTotal)
		prometheus.MustRegister(BackendRequestDuration)
		prometheus.MustRegister(FacesIndexedTotal)
		prometheus.MustRegister(MatchesTotal)
		prometheus.MustRegister(UploadsTotal)
	})
}

// ObserveCall records the outcome and duration of one backend call.
func ObserveCall(backend, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BackendRequestsTotal.WithLabelValues(backend, operation, status).Inc()
	BackendRequestDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
