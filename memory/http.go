package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClientOptions configure an HTTPClient.
type HTTPClientOptions struct {
	// APIKey is sent as an Authorization header when non-empty.
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient is a Store backed by a mem0-style REST memory service:
//
//	POST {base}/v1/memories/search/  {"query": ..., "user_id": ..., "limit": ...}
//	POST {base}/v1/memories/         {"messages": [{"role": "user", "content": ...}], "user_id": ...}
//
// The adapter above makes every failure non-fatal, so this client just
// reports errors honestly.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	opts    HTTPClientOptions
}

// NewHTTPClient creates a client for the service rooted at baseURL
// (no trailing slash).
func NewHTTPClient(baseURL string, optFns ...func(o *HTTPClientOptions)) *HTTPClient {
	opts := HTTPClientOptions{Timeout: 10 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPClient{baseURL: baseURL, client: client, opts: opts}
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type searchResponse struct {
	Results []struct {
		ID       string         `json:"id"`
		Memory   string         `json:"memory"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"results"`
}

// Search implements Store.
func (c *HTTPClient) Search(ctx context.Context, user, query string, limit int) ([]SearchResult, error) {
	var resp searchResponse
	err := c.post(ctx, "/v1/memories/search/", searchRequest{Query: query, UserID: user, Limit: limit}, &resp)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{ID: r.ID, Content: r.Memory, Score: r.Score, Metadata: r.Metadata})
	}
	return results, nil
}

type addRequest struct {
	Messages []addMessage   `json:"messages"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type addMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Add implements Store.
func (c *HTTPClient) Add(ctx context.Context, user, content string, metadata map[string]any) error {
	role := "user"
	if r, ok := metadata["role"].(string); ok && r != "" {
		role = r
	}
	req := addRequest{
		Messages: []addMessage{{Role: role, Content: content}},
		UserID:   user,
		Metadata: metadata,
	}
	return c.post(ctx, "/v1/memories/", req, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode memory request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build memory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Token "+c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("memory service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("memory service returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode memory response: %w", err)
	}
	return nil
}
