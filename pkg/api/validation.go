package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxPromptSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxPromptSize: 1 * 1024 * 1024,
	}
}

// ValidateRequest checks the kind-independent shape of a request. It returns
// an *APIError describing the first failure, or nil. Kind-specific parameters
// are checked when the typed payload is decoded.
func ValidateRequest(req *Request, cfg ValidationConfig) *APIError {
	if req == nil {
		return NewValidationError("", "request is required")
	}
	if !req.Kind.Valid() {
		return NewValidationError("kind", fmt.Sprintf("unknown request kind %q", req.Kind))
	}

	switch req.Kind {
	case KindGenerate, KindRAGQuery, KindEnhanced:
		if req.Prompt == "" {
			return NewValidationError("prompt", "prompt is required")
		}
	}

	if cfg.MaxPromptSize > 0 && len(req.Prompt) > cfg.MaxPromptSize {
		return NewValidationError("prompt",
			fmt.Sprintf("prompt exceeds maximum size of %d bytes", cfg.MaxPromptSize))
	}
	return nil
}
