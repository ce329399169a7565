package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/observability"
	"github.com/rhuss/lokal/pkg/provider"
	"github.com/rhuss/lokal/pkg/storage"
)

// Document is a stored, embedded piece of content.
type Document = storage.Document

// Match is a retrieved document and its similarity to the query.
type Match struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Input is one document to add with AddMany. A non-nil Embedding is used
// as is instead of calling the embedder.
type Input struct {
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// Stats summarizes the store.
type Stats struct {
	TotalDocuments        int     `json:"total_documents"`
	TotalEmbeddings       int     `json:"total_embeddings"`
	AverageDocumentLength float64 `json:"average_document_length"`
	EmbeddingDimension    int     `json:"embedding_dimension"`
}

// Store owns the documents and their embeddings.
type Store struct {
	embedder  provider.Embedder
	persister storage.DocumentPersister

	mu    sync.RWMutex
	docs  []Document
	index map[string]int
	dims  int

	// saveMu orders snapshot-and-write so saves land in mutation order.
	saveMu sync.Mutex
}

// New creates an empty Store. persister may be nil for a purely in-memory
// store.
func New(embedder provider.Embedder, persister storage.DocumentPersister) *Store {
	return &Store{
		embedder:  embedder,
		persister: persister,
		index:     make(map[string]int),
		dims:      embedder.Dimensions(),
	}
}

// DocumentID returns the content-derived id: the first 16 hex characters
// of the MD5 digest.
func DocumentID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Add stores content unless a document with the same content exists, and
// returns its id. A persistence failure after the in-memory insert is logged
// and does not fail the call.
func (s *Store) Add(ctx context.Context, content string, metadata map[string]any) (string, error) {
	id, added, err := s.add(ctx, Input{Content: content, Metadata: metadata})
	if err != nil {
		return "", err
	}
	if added {
		s.persist(ctx)
	}
	return id, nil
}

// AddMany adds several documents and saves once. It stops at the first
// embedding error; documents added before it stay stored.
func (s *Store) AddMany(ctx context.Context, inputs []Input) ([]string, error) {
	ids := make([]string, 0, len(inputs))
	changed := false
	var firstErr error
	for _, in := range inputs {
		id, added, err := s.add(ctx, in)
		if err != nil {
			firstErr = err
			break
		}
		changed = changed || added
		ids = append(ids, id)
	}
	if changed {
		s.persist(ctx)
	}
	return ids, firstErr
}

func (s *Store) add(ctx context.Context, in Input) (string, bool, error) {
	content := in.Content
	id := DocumentID(content)

	s.mu.RLock()
	_, exists := s.index[id]
	s.mu.RUnlock()
	if exists {
		debug.Log("retrieval", "document already indexed", "id", id)
		return id, false, nil
	}

	metadata, err := normalizeMetadata(in.Metadata)
	if err != nil {
		return "", false, err
	}

	// Embedding may be slow; it runs without holding the lock.
	vec := in.Embedding
	if vec == nil {
		if vec, err = s.embedder.Embed(ctx, content); err != nil {
			return "", false, fmt.Errorf("embedding document: %w", err)
		}
	}

	s.mu.Lock()
	if _, exists := s.index[id]; exists {
		s.mu.Unlock()
		return id, false, nil
	}
	if err := s.checkDims(len(vec)); err != nil {
		s.mu.Unlock()
		return "", false, err
	}
	s.index[id] = len(s.docs)
	s.docs = append(s.docs, Document{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Embedding: vec,
	})
	count := len(s.docs)
	s.mu.Unlock()

	observability.Documents.Set(float64(count))
	slog.Info("document added", "id", id, "length", len(content), "documents", count)
	return id, true, nil
}

// Remove deletes the documents with the given ids and returns how many
// existed. The remaining documents keep their relative order.
func (s *Store) Remove(ctx context.Context, ids ...string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	kept := s.docs[:0:0]
	for _, d := range s.docs {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	removed := len(s.docs) - len(kept)
	if removed > 0 {
		s.docs = kept
		s.index = make(map[string]int, len(kept))
		for i, d := range kept {
			s.index[d.ID] = i
		}
	}
	count := len(s.docs)
	s.mu.Unlock()

	if removed > 0 {
		observability.Documents.Set(float64(count))
		slog.Info("documents removed", "count", removed, "documents", count)
		s.persist(ctx)
	}
	return removed
}

// Embedder returns the embedder used for documents and queries.
func (s *Store) Embedder() provider.Embedder { return s.embedder }

// checkDims fixes the index dimensionality on first use and rejects
// vectors of any other length. Caller holds s.mu.
func (s *Store) checkDims(n int) error {
	if s.dims == 0 {
		s.dims = n
		return nil
	}
	if n != s.dims {
		return fmt.Errorf("%w: got %d, index has %d", storage.ErrDimensionMismatch, n, s.dims)
	}
	return nil
}

// Get returns the document with the given id.
func (s *Store) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Document{}, storage.ErrNotFound
	}
	return cloneDocument(s.docs[i]), nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// List returns all documents in insertion order.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = cloneDocument(d)
	}
	return out
}

// Retrieve returns up to k documents most similar to query, best first.
// Equal scores keep insertion order. An empty store or k <= 0 yields an
// empty result.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	start := time.Now()
	defer func() { observability.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	if k <= 0 || s.Len() == 0 {
		return []Match{}, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	if s.dims != 0 && len(qvec) != s.dims {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: query has %d, index has %d", storage.ErrDimensionMismatch, len(qvec), s.dims)
	}
	matches := make([]Match, 0, len(s.docs))
	for _, d := range s.docs {
		if d.Embedding == nil {
			continue
		}
		matches = append(matches, Match{Document: d, Score: Cosine(qvec, d.Embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	for i := range matches {
		matches[i].Document = cloneDocument(matches[i].Document)
	}

	if debug.Enabled("retrieval") {
		for i, m := range matches {
			debug.Log("retrieval", "match", "rank", i, "id", m.Document.ID, "score", m.Score)
		}
	}
	return matches, nil
}

// Stats summarizes the stored documents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{TotalDocuments: len(s.docs), EmbeddingDimension: s.dims}
	total := 0
	for _, d := range s.docs {
		total += len([]rune(d.Content))
		if d.Embedding != nil {
			st.TotalEmbeddings++
		}
	}
	if len(s.docs) > 0 {
		st.AverageDocumentLength = float64(total) / float64(len(s.docs))
	}
	return st
}

// Save writes the full collection through the persister.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snapshot := make([]Document, len(s.docs))
	copy(snapshot, s.docs)
	s.mu.RUnlock()

	if err := s.persister.SaveDocuments(ctx, snapshot); err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("documents", "save").Inc()
		return fmt.Errorf("saving documents: %w", err)
	}
	return nil
}

// Load replaces the in-memory collection with the persisted one. Documents
// persisted without an embedding are re-embedded. On error the current
// state is left untouched.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	docs, err := s.persister.LoadDocuments(ctx)
	if err != nil {
		observability.PersistenceErrorsTotal.WithLabelValues("documents", "load").Inc()
		return fmt.Errorf("loading documents: %w", err)
	}

	dims := s.embedder.Dimensions()
	index := make(map[string]int, len(docs))
	kept := make([]Document, 0, len(docs))
	for _, d := range docs {
		if _, dup := index[d.ID]; dup {
			continue
		}
		if d.Embedding == nil {
			if d.Embedding, err = s.embedder.Embed(ctx, d.Content); err != nil {
				return fmt.Errorf("re-embedding document %s: %w", d.ID, err)
			}
		}
		if dims == 0 {
			dims = len(d.Embedding)
		}
		if len(d.Embedding) != dims {
			return fmt.Errorf("%w: document %s has %d, index has %d",
				storage.ErrDimensionMismatch, d.ID, len(d.Embedding), dims)
		}
		if d.Metadata == nil {
			d.Metadata = map[string]any{}
		}
		index[d.ID] = len(kept)
		kept = append(kept, d)
	}

	s.mu.Lock()
	s.docs = kept
	s.index = index
	s.dims = dims
	s.mu.Unlock()

	observability.Documents.Set(float64(len(kept)))
	slog.Info("documents loaded", "count", len(kept), "dimensions", dims)
	return nil
}

// persist saves after a mutation. Failures are logged, never returned.
func (s *Store) persist(ctx context.Context) {
	if err := s.Save(context.WithoutCancel(ctx)); err != nil {
		slog.Error("document persistence failed", "error", err)
	}
}

// normalizeMetadata gives metadata the shape it has after a JSON round
// trip (numbers as float64, slices as []any), so stored and reloaded
// documents compare equal.
func normalizeMetadata(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	out := make(map[string]any, len(m))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return out, nil
}

// cloneDocument copies d so callers cannot modify the stored metadata or
// embedding. Metadata values are JSON-shaped, so nested maps and slices
// are copied as well.
func cloneDocument(d Document) Document {
	d.Metadata = cloneMap(d.Metadata)
	if d.Embedding != nil {
		d.Embedding = append([]float32(nil), d.Embedding...)
	}
	return d
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
