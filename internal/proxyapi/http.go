package proxyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/metrics"
)

// do sends req and returns the body of a 200 response.
func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from validated parsedURL via resolveURL
	if err != nil {
		return nil, nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read response body: %w", err)
	}
	return body, resp.Header, nil
}

// doGetJSON performs a GET request and unmarshals the JSON response into the result type.
func doGetJSON[T any](ctx context.Context, c *Client, endpoint string) (result *T, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCall("proxy", endpoint, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(endpoint), nil)
	if err != nil {
		return nil, apperr.API("proxyapi.get", fmt.Errorf("could not create request: %w", err))
	}

	body, _, err := c.do(req)
	if err != nil {
		return nil, apperr.API("proxyapi.get", err)
	}

	c.captureResponse(endpoint, body)
	return decodeJSON[T](body)
}

func decodeJSON[T any](body []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperr.API("proxyapi.decode", fmt.Errorf("could not unmarshal response: %w", err))
	}
	return &result, nil
}

// IsNotFoundError returns true if the error indicates a 404 Not Found response.
func IsNotFoundError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
