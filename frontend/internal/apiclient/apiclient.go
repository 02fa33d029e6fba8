package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
)

const defaultTimeout = 2 * time.Minute

// APIClient handles all communication with the media/chat backend.
type APIClient struct {
	BaseURL    string
	HttpClient *http.Client
}

// New creates a client for the backend rooted at baseURL (e.g. http://localhost:3001).
func New(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HttpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// do is the single helper for backend requests. Network failures come back as TransportError.
func (c *APIClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create API request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, &internal_errors.TransportError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}

// expectStatus closes the body and returns a TransportError unless resp has one of the wanted codes.
func expectStatus(resp *http.Response, op string, wanted ...int) error {
	for _, code := range wanted {
		if resp.StatusCode == code {
			return nil
		}
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	return &internal_errors.TransportError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%s", strings.TrimSpace(string(bodyBytes))),
	}
}
