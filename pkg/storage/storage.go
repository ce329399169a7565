package storage

import (
	"context"
	"time"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "default"

// Document is a piece of retrievable content. ID is derived from Content.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// ContextRecord is a timestamped unit of arbitrary content.
type ContextRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Content   any            `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ContextSnapshot is the persisted state of a context store. NextSeq is the
// sequence number the next record receives, so IDs are never reused after a
// reload.
type ContextSnapshot struct {
	Records []ContextRecord `json:"contexts"`
	NextSeq int64           `json:"next_seq"`
}

// DocumentPersister saves and loads the full document collection.
type DocumentPersister interface {
	// SaveDocuments replaces the persisted collection with docs, in order.
	SaveDocuments(ctx context.Context, docs []Document) error

	// LoadDocuments returns the persisted collection in saved order. An
	// absent collection yields an empty slice and no error.
	LoadDocuments(ctx context.Context) ([]Document, error)
}

// ContextPersister saves and loads the full context collection.
type ContextPersister interface {
	SaveContexts(ctx context.Context, snap ContextSnapshot) error
	LoadContexts(ctx context.Context) (ContextSnapshot, error)
}

// Persister is implemented by every backend.
type Persister interface {
	DocumentPersister
	ContextPersister

	// Name identifies the backend in logs and metrics.
	Name() string

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	Close() error
}
