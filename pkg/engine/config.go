package engine

import (
	"time"

	"github.com/rhuss/lokal/pkg/api"
)

// Config holds configuration for the engine.
type Config struct {
	// Defaults fill in request parameters the caller omits.
	Defaults api.Defaults

	// Validation bounds request shape.
	Validation api.ValidationConfig

	// RequestTimeout bounds every request. A timeout_ms request parameter
	// overrides it. Zero means no deadline.
	RequestTimeout time.Duration

	// RAGGenerate makes rag_query answers come from the generator when one
	// is configured. Otherwise answers are templated summaries.
	RAGGenerate bool

	// ContextDocuments is how many retrieved documents the enhanced
	// workflow puts into the augmented prompt. Zero means 2.
	ContextDocuments int
}

// DefaultConfig returns the built-in engine configuration.
func DefaultConfig() Config {
	return Config{
		Defaults:         api.DefaultDefaults(),
		Validation:       api.DefaultValidationConfig(),
		ContextDocuments: 2,
	}
}

func (c Config) contextDocuments() int {
	if c.ContextDocuments <= 0 {
		return 2
	}
	return c.ContextDocuments
}
