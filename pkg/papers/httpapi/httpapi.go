package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

const defaultTimeout = 60 * time.Second

// Client resolves paper metadata against a batch JSON endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a metadata API client. Requests time out after
// params.Timeout (60s when unset); retries are the caller's concern.
func NewClient(params NewClientParams) *Client {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: params.BaseURL,
		apiKey:  params.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

// Resolve posts one batch of paper ids and returns the records the service
// knows about. Ids missing from the response are unresolved.
func (c *Client) Resolve(ctx context.Context, ids []string) (map[string]papers.Record, error) {
	body, err := json.Marshal(batchRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("metadata request returned %d: %s", res.StatusCode, payload)
	}

	var records map[string]papers.Record
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse metadata response: %w", err)
	}
	return records, nil
}
