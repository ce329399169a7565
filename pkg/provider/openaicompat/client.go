package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/debug"
)

// client is the HTTP plumbing shared by Generator and Embedder.
type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func newClient(cfg Config) (*client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

// resolveModel substitutes the configured model for "default" or empty.
func (c *client) resolveModel(model string) string {
	if (model == "" || model == "default") && c.model != "" {
		return c.model
	}
	return model
}

// post sends body as JSON to path and decodes a 2xx response into out.
func (c *client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	debug.Log("providers", "backend request", "method", http.MethodPost, "url", url)
	debug.Trace("providers", "backend request body", "body", string(data))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	debug.Log("providers", "backend response", "url", url, "status", httpResp.StatusCode)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return MapHTTPError(httpResp)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return api.NewProviderExecutionError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}
	return nil
}

func (c *client) close() {
	c.httpClient.CloseIdleConnections()
}
