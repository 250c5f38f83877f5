// Package matcher runs a sketch search against the configured backend and resolves each
// match to a viewable image.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/metrics"
	"github.com/kozaktomas/sketch-match/internal/picture"
)

// NoMatchMessage is shown when the search returns nothing.
const NoMatchMessage = "No Match Found"

// Probe is the local sketch submitted for a search.
type Probe struct {
	Path string
	Name string // file base name
	Data []byte
}

// Candidate is one search result as reported by a backend.
type Candidate struct {
	ExternalID string  // external image id (direct) or matched image id (proxy)
	ObjectKey  string  // object key of the gallery photo, empty when unknown
	FaceID     string  // empty for the proxy backend
	Similarity float64 // 0-100
	Confidence float64 // 0-100, 0 when the backend does not report it
}

// Backend searches a sketch and fetches the matched gallery images.
type Backend interface {
	// Name identifies the backend in logs and output ("direct" or "proxy").
	Name() string
	// Search returns candidates ranked by the recognition service. Empty means no match.
	Search(ctx context.Context, probe Probe) ([]Candidate, error)
	// DisplayURL returns the URL the candidate's image is shown from.
	DisplayURL(c Candidate) string
	// FetchImage returns the image bytes for a candidate.
	FetchImage(ctx context.Context, c Candidate) ([]byte, error)
}

// Match is a candidate resolved for display.
type Match struct {
	Candidate
	URL      string
	Picture  *picture.Picture // nil when ImageErr is set
	ImageErr error            // fetch or decode failure for this match only
}

// Outcome is the result of one search.
type Outcome struct {
	Backend string
	Probe   string // probe file base name
	NoMatch bool
	Matches []Match
}

// Orchestrator drives one search end to end: read the sketch, search, resolve images.
type Orchestrator struct {
	backend Backend
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator for backend.
func NewOrchestrator(backend Backend, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{backend: backend, logger: logger}
}

// ReadProbe loads the sketch at path.
func ReadProbe(path string) (Probe, error) {
	if strings.TrimSpace(path) == "" {
		return Probe{}, apperr.Input("matcher.read_probe", errors.New("no file selected"))
	}

	info, err := os.Stat(path)
	if err != nil {
		return Probe{}, apperr.Input("matcher.read_probe", fmt.Errorf("could not access %s: %w", path, err))
	}
	if info.IsDir() {
		return Probe{}, apperr.Input("matcher.read_probe", fmt.Errorf("%s is a directory", path))
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-selected sketch
	if err != nil {
		return Probe{}, apperr.Input("matcher.read_probe", fmt.Errorf("could not read %s: %w", path, err))
	}
	return Probe{Path: path, Name: filepath.Base(path), Data: data}, nil
}

// FindMatch searches with the sketch at path. No match is reported through
// Outcome.NoMatch, not as an error. A failure to fetch or decode one match is
// recorded on that match and the remaining matches are still resolved.
func (o *Orchestrator) FindMatch(ctx context.Context, path string) (*Outcome, error) {
	probe, err := ReadProbe(path)
	if err != nil {
		metrics.MatchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return o.FindMatchProbe(ctx, probe)
}

// FindMatchProbe is FindMatch for an already loaded sketch.
func (o *Orchestrator) FindMatchProbe(ctx context.Context, probe Probe) (*Outcome, error) {
	logger := o.logger.With(zap.String("backend", o.backend.Name()), zap.String("probe", probe.Name))

	candidates, err := o.backend.Search(ctx, probe)
	if err != nil {
		metrics.MatchesTotal.WithLabelValues("error").Inc()
		logger.Error("search failed", zap.Error(err))
		return nil, err
	}

	out := &Outcome{Backend: o.backend.Name(), Probe: probe.Name}
	if len(candidates) == 0 {
		metrics.MatchesTotal.WithLabelValues("no_match").Inc()
		logger.Info("no match found")
		out.NoMatch = true
		return out, nil
	}
	metrics.MatchesTotal.WithLabelValues("match").Inc()

	out.Matches = make([]Match, 0, len(candidates))
	for _, c := range candidates {
		m := Match{Candidate: c, URL: o.backend.DisplayURL(c)}
		m.Picture, m.ImageErr = o.loadImage(ctx, c)
		if m.ImageErr != nil {
			logger.Warn("could not load matched image",
				zap.String("external_id", c.ExternalID),
				zap.String("url", m.URL),
				zap.Error(m.ImageErr))
		} else {
			logger.Info("match",
				zap.String("external_id", c.ExternalID),
				zap.Float64("similarity", c.Similarity))
		}
		out.Matches = append(out.Matches, m)
	}
	return out, nil
}

func (o *Orchestrator) loadImage(ctx context.Context, c Candidate) (*picture.Picture, error) {
	data, err := o.backend.FetchImage(ctx, c)
	if err != nil {
		return nil, err
	}
	return picture.Decode(data)
}

// StripPrefixToken removes every occurrence of token from id. An id without the token,
// or an empty token, leaves id unchanged.
func StripPrefixToken(id, token string) string {
	if token == "" {
		return id
	}
	return strings.ReplaceAll(id, token, "")
}

// DisplayKey rebuilds a gallery object key from an external image id:
// "Photos_a.jpg" with token "Photos_" under "Photos/" becomes "Photos/a.jpg".
// Characters replaced during sanitization cannot be recovered.
func DisplayKey(externalID, token, galleryPrefix string) string {
	return galleryPrefix + StripPrefixToken(externalID, token)
}
