package proxyapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/constants"
	"github.com/kozaktomas/sketch-match/internal/metrics"
)

// SketchResult is the answer of POST /upload_sketch
type SketchResult struct {
	MatchedImageID string  `json:"matched_image_id"`
	Similarity     float64 `json:"similarity"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// Matched reports whether the API found a match
func (r *SketchResult) Matched() bool {
	return r.MatchedImageID != ""
}

// HealthStatus is the answer of GET /api/v1/health
type HealthStatus struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// UploadSketch posts the file at filePath as the "sketch" part and returns the best match
func (c *Client) UploadSketch(ctx context.Context, filePath string) (*SketchResult, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // user-provided file path for upload
	if err != nil {
		return nil, apperr.Input("proxyapi.upload_sketch", fmt.Errorf("could not open file: %w", err))
	}
	return c.UploadSketchData(ctx, filepath.Base(filePath), data)
}

// UploadSketchData posts data as the "sketch" part under filename and returns the best match
func (c *Client) UploadSketchData(ctx context.Context, filename string, data []byte) (result *SketchResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("proxy", "upload_sketch", start, err) }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(constants.SketchFormField, filename)
	if err != nil {
		return nil, apperr.API("proxyapi.upload_sketch", fmt.Errorf("could not create form file: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return nil, apperr.API("proxyapi.upload_sketch", fmt.Errorf("could not copy file data: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, apperr.API("proxyapi.upload_sketch", fmt.Errorf("could not close writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL("upload_sketch"), &body)
	if err != nil {
		return nil, apperr.API("proxyapi.upload_sketch", fmt.Errorf("could not create request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, _, err := c.do(req)
	if err != nil {
		return nil, apperr.API("proxyapi.upload_sketch", err)
	}

	c.captureResponse("upload_sketch", respBody)
	return decodeJSON[SketchResult](respBody)
}

// ImageURL returns the URL FetchImage reads a matched image from
func (c *Client) ImageURL(matchedImageID string) string {
	return c.resolveURL(c.ImageID(matchedImageID))
}

// FetchImage downloads the image for a matched image id. The prefix token is stripped
// from the id first, so "Photos/a.jpg" is fetched from /a.jpg.
func (c *Client) FetchImage(ctx context.Context, matchedImageID string) (data []byte, contentType string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("proxy", "fetch_image", start, err) }()

	id := c.ImageID(matchedImageID)
	if id == "" {
		return nil, "", apperr.API("proxyapi.fetch_image", fmt.Errorf("empty image id"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(id), nil)
	if err != nil {
		return nil, "", apperr.API("proxyapi.fetch_image", fmt.Errorf("could not create request: %w", err))
	}

	data, header, err := c.do(req)
	if err != nil {
		return nil, "", apperr.API("proxyapi.fetch_image", fmt.Errorf("fetch %s: %w", id, err))
	}
	return data, header.Get("Content-Type"), nil
}

// Health returns the API health status
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	return doGetJSON[HealthStatus](ctx, c, "api/v1/health")
}
