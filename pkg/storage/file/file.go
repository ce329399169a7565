// Package file persists documents and contexts as JSON files under a
// directory, one subdirectory per namespace:
//
//	<dir>/<namespace>/documents.json   ordered [{id, content, metadata}]
//	<dir>/<namespace>/embeddings.json  {id: [float, ...]}
//	<dir>/<namespace>/contexts.json    {contexts: [...], next_seq: n}
//
// Every file is replaced atomically. Embeddings are written before
// documents, and embeddings without a matching document are ignored on load.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/storage"
)

const (
	documentsFile  = "documents.json"
	embeddingsFile = "embeddings.json"
	contextsFile   = "contexts.json"

	filePerm = 0o644
	dirPerm  = 0o755
)

// Config holds file backend settings.
type Config struct {
	// Dir is the root data directory.
	Dir string

	// Namespace selects the subdirectory. Defaults to storage.DefaultNamespace.
	Namespace string
}

// Store is a JSON file storage.Persister.
type Store struct {
	dir string
}

var _ storage.Persister = (*Store)(nil)

// documentEntry is the on-disk document shape; embeddings live in their
// own file.
type documentEntry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// New creates the namespace directory if needed and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file storage: directory is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = storage.DefaultNamespace
	}
	dir := filepath.Join(cfg.Dir, ns)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Name returns "file".
func (s *Store) Name() string { return "file" }

// Dir returns the namespace directory.
func (s *Store) Dir() string { return s.dir }

// SaveDocuments writes the embedding index, then the document list.
func (s *Store) SaveDocuments(ctx context.Context, docs []storage.Document) error {
	entries := make([]documentEntry, len(docs))
	embeddings := make(map[string][]float32, len(docs))
	for i, d := range docs {
		entries[i] = documentEntry{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
		if d.Embedding != nil {
			embeddings[d.ID] = d.Embedding
		}
	}

	if err := s.writeJSON(embeddingsFile, embeddings); err != nil {
		return err
	}
	if err := s.writeJSON(documentsFile, entries); err != nil {
		return err
	}
	debug.Log("storage", "documents saved", "backend", "file", "count", len(docs), "dir", s.dir)
	return nil
}

// LoadDocuments reads the document list and attaches embeddings by id.
func (s *Store) LoadDocuments(ctx context.Context) ([]storage.Document, error) {
	var entries []documentEntry
	found, err := s.readJSON(documentsFile, &entries)
	if err != nil || !found {
		return []storage.Document{}, err
	}

	embeddings := map[string][]float32{}
	if _, err := s.readJSON(embeddingsFile, &embeddings); err != nil {
		return nil, err
	}

	docs := make([]storage.Document, len(entries))
	for i, e := range entries {
		docs[i] = storage.Document{
			ID:        e.ID,
			Content:   e.Content,
			Metadata:  e.Metadata,
			Embedding: embeddings[e.ID],
		}
	}
	return docs, nil
}

// SaveContexts writes the context snapshot.
func (s *Store) SaveContexts(ctx context.Context, snap storage.ContextSnapshot) error {
	if snap.Records == nil {
		snap.Records = []storage.ContextRecord{}
	}
	if err := s.writeJSON(contextsFile, snap); err != nil {
		return err
	}
	debug.Log("storage", "contexts saved", "backend", "file", "count", len(snap.Records), "dir", s.dir)
	return nil
}

// LoadContexts reads the context snapshot.
func (s *Store) LoadContexts(ctx context.Context) (storage.ContextSnapshot, error) {
	var snap storage.ContextSnapshot
	if _, err := s.readJSON(contextsFile, &snap); err != nil {
		return storage.ContextSnapshot{}, err
	}
	return snap, nil
}

// HealthCheck verifies the directory is still accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, name), data, filePerm); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// readJSON decodes the named file into v. A missing file reports found=false.
func (s *Store) readJSON(name string, v any) (found bool, err error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}
	return true, nil
}
