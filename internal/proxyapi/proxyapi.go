// Package proxyapi is a client for the local sketch matching HTTP API.
package proxyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to the local proxy API (POST /upload_sketch, GET /<image id>)
type Client struct {
	URL         string
	parsedURL   *url.URL
	httpClient  *http.Client
	prefixToken string
	captureDir  string
}

// StatusError is returned when the API answers with an unexpected status code
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// New creates a client for the API at rawURL. prefixToken is stripped from matched
// image ids before fetching them.
func New(rawURL, prefixToken string, timeout time.Duration) (*Client, error) {
	return NewWithCapture(rawURL, prefixToken, timeout, "")
}

// NewWithCapture creates a client with optional response capturing.
// Pass an empty captureDir to disable capturing.
func NewWithCapture(rawURL, prefixToken string, timeout time.Duration, captureDir string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy API URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid proxy API URL %q: scheme must be http or https", rawURL)
	}

	c := &Client{
		URL:         parsed.String(),
		parsedURL:   parsed,
		httpClient:  &http.Client{Timeout: timeout},
		prefixToken: prefixToken,
	}
	if captureDir != "" {
		if err := c.SetCaptureDir(captureDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// resolveURL builds a full URL from the base URL and the given path segments.
func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// ImageID strips the configured prefix token from a matched image id.
// Ids without the token are returned unchanged.
func (c *Client) ImageID(matchedImageID string) string {
	return strings.ReplaceAll(matchedImageID, c.prefixToken, "")
}

// readErrorBody reads the response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "(could not read error body)"
	}
	return strings.TrimSpace(string(body))
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the API response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	filename := strings.ReplaceAll(endpoint, "/", "_")
	filename = strings.TrimPrefix(filename, "_")
	timestamp := time.Now().Format("20060102_150405")
	filename = fmt.Sprintf("%s_%s.json", filename, timestamp)

	path := filepath.Join(c.captureDir, filename)

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
