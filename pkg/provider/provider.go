package provider

import "context"

// Generator produces text for a prompt.
//
// Implementations must be safe for concurrent use by multiple goroutines and
// must return promptly when ctx is cancelled.
type Generator interface {
	// Name returns the backend identifier (e.g., "mock", "openai").
	Name() string

	// Generate runs a single completion.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}

// Embedder maps text to a fixed-length vector. The same text must always
// yield the same vector, and every vector must have Dimensions() entries.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Embedder interface {
	// Name returns the backend identifier.
	Name() string

	// Embed converts a single text into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length, or 0 while still unknown
	// (remote backends learn it from the first response).
	Dimensions() int
}
