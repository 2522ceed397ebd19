// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient wraps http.Client with convenience methods for testing
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a new HTTP client for testing
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Close drops idle keep-alive connections so no transport goroutines outlive
// the test.
func (c *HTTPClient) Close() {
	c.client.CloseIdleConnections()
}

// Response is a fully read HTTP response together with the wall-clock time
// the round trip took.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	Elapsed    time.Duration
}

// Get performs a GET request and reads the whole body.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(body),
		Elapsed:    time.Since(start),
	}, nil
}
