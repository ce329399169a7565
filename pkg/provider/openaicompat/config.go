package openaicompat

import "time"

// Config holds configuration for an OpenAI-compatible backend.
type Config struct {
	// BaseURL is the server URL (e.g., "http://localhost:8000").
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Model is the default model name for requests that carry "default"
	// or no model at all.
	Model string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
	}
}
