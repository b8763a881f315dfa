package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single lookup when the caller does not pick one.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of an upstream response is decoded.
const maxBodySize = 1 << 20

// apiClient is the JSON-over-HTTPS transport shared by the remote lookups.
// All endpoints live under one API base.
type apiClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func newAPIClient(baseURL string, httpClient *http.Client, timeout time.Duration) apiClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		timeout: timeout,
	}
}

// post sends payload as JSON and decodes the response into v. Transport
// failures, non-2xx statuses and undecodable bodies map onto the Kind taxonomy.
func (c apiClient) post(ctx context.Context, op, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return malformed(op, fmt.Errorf("marshal payload: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return networkError(op, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return serverError(op, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return networkError(op, fmt.Errorf("read response: %w", err))
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return malformed(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
