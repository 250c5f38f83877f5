package matcher

import (
	"context"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/proxyapi"
)

// ProxyBackend delegates the search to the local proxy API.
type ProxyBackend struct {
	client *proxyapi.Client
}

// NewProxyBackend creates a proxy backend.
func NewProxyBackend(client *proxyapi.Client) *ProxyBackend {
	return &ProxyBackend{client: client}
}

// Name returns "proxy".
func (b *ProxyBackend) Name() string {
	return config.BackendProxy
}

// Search posts the sketch. The API answers with at most one match.
func (b *ProxyBackend) Search(ctx context.Context, probe Probe) ([]Candidate, error) {
	res, err := b.client.UploadSketchData(ctx, probe.Name, probe.Data)
	if err != nil {
		return nil, err
	}
	if !res.Matched() {
		return nil, nil
	}
	return []Candidate{{
		ExternalID: res.MatchedImageID,
		ObjectKey:  res.MatchedImageID,
		Similarity: res.Similarity,
		Confidence: res.Confidence,
	}}, nil
}

// DisplayURL returns the API URL of the matched image.
func (b *ProxyBackend) DisplayURL(c Candidate) string {
	return b.client.ImageURL(c.ExternalID)
}

// FetchImage downloads the matched image from the API.
func (b *ProxyBackend) FetchImage(ctx context.Context, c Candidate) ([]byte, error) {
	data, _, err := b.client.FetchImage(ctx, c.ExternalID)
	return data, err
}
