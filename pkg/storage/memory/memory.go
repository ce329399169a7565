// Package memory provides an in-process storage.Persister. Saved
// collections are deep-copied snapshots and are lost when the process
// restarts.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rhuss/lokal/pkg/storage"
)

// Store keeps the last saved document and context collections.
type Store struct {
	mu       sync.RWMutex
	docs     []storage.Document
	contexts storage.ContextSnapshot
	saves    int
	failErr  error
}

// Ensure Store implements storage.Persister at compile time.
var _ storage.Persister = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Name returns "memory".
func (s *Store) Name() string { return "memory" }

// FailWith makes every subsequent save return err. A nil err restores
// normal operation.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Saves returns how many saves succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SaveDocuments stores a copy of docs.
func (s *Store) SaveDocuments(ctx context.Context, docs []storage.Document) error {
	cp, err := deepCopy(docs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.docs = cp
	s.saves++
	return nil
}

// LoadDocuments returns a copy of the last saved documents.
func (s *Store) LoadDocuments(ctx context.Context) ([]storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.docs == nil {
		return []storage.Document{}, nil
	}
	return deepCopy(s.docs)
}

// SaveContexts stores a copy of snap.
func (s *Store) SaveContexts(ctx context.Context, snap storage.ContextSnapshot) error {
	cp, err := deepCopy(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.contexts = cp
	s.saves++
	return nil
}

// LoadContexts returns a copy of the last saved contexts.
func (s *Store) LoadContexts(ctx context.Context) (storage.ContextSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.contexts)
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// deepCopy round-trips v through JSON so callers never share nested maps
// with the store. Content values therefore come back in their JSON shape,
// the same as with the durable backends.
func deepCopy[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("copying snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("copying snapshot: %w", err)
	}
	return out, nil
}
