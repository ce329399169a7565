package provider

// GenerateRequest is the backend-facing generation request.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	// System is an optional system instruction placed before the prompt.
	System string `json:"system,omitempty"`
}

// GenerateResult is the outcome of a successful generation.
type GenerateResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`

	// Metadata carries backend-specific details (finish reason, provider name).
	Metadata map[string]any `json:"metadata,omitempty"`
}
