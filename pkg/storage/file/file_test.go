package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/lokal/pkg/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir(), Namespace: "test"})
	require.NoError(t, err)
	return s
}

func TestStore_EmptyLoad(t *testing.T) {
	s := newStore(t)

	docs, err := s.LoadDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	snap, err := s.LoadContexts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.Zero(t, snap.NextSeq)
}

func TestStore_DocumentsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := []storage.Document{
		{ID: "b1", Content: "second by id, first by order", Metadata: map[string]any{"source": "x"}, Embedding: []float32{0.5, -0.5}},
		{ID: "a1", Content: "first by id", Metadata: map[string]any{}, Embedding: []float32{1, 0}},
	}
	require.NoError(t, s.SaveDocuments(ctx, in))

	out, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b1", out[0].ID, "insertion order is preserved")
	assert.Equal(t, in[0].Embedding, out[0].Embedding)
	assert.Equal(t, "x", out[0].Metadata["source"])

	assert.FileExists(t, filepath.Join(s.Dir(), documentsFile))
	assert.FileExists(t, filepath.Join(s.Dir(), embeddingsFile))
}

func TestStore_ContextsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := storage.ContextSnapshot{
		NextSeq: 2,
		Records: []storage.ContextRecord{{
			ID:        "ctx_1_1772366400",
			Name:      "Enhanced Query Result",
			Content:   map[string]any{"query": "q", "result": "r"},
			Metadata:  map[string]any{"type": "enhanced_query"},
			CreatedAt: created,
			UpdatedAt: created,
		}},
	}
	require.NoError(t, s.SaveContexts(ctx, in))

	raw, err := os.ReadFile(filepath.Join(s.Dir(), contextsFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "2026-03-01T12:00:00Z", "timestamps are ISO-8601")

	out, err := s.LoadContexts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.NextSeq)
	require.Len(t, out.Records, 1)
	assert.True(t, out.Records[0].CreatedAt.Equal(created))
	assert.Equal(t, "q", out.Records[0].Content.(map[string]any)["query"])
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveDocuments(context.Background(), []storage.Document{{ID: "a", Content: "a"}}))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), tempFilePrefix), "leftover temp file %s", e.Name())
	}
}

func TestStore_CorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), documentsFile), []byte("{not json"), 0o644))

	_, err := s.LoadDocuments(context.Background())
	assert.Error(t, err)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	root := t.TempDir()
	a, err := New(Config{Dir: root, Namespace: "a"})
	require.NoError(t, err)
	b, err := New(Config{Dir: root, Namespace: "b"})
	require.NoError(t, err)

	require.NoError(t, a.SaveDocuments(context.Background(), []storage.Document{{ID: "x", Content: "x"}}))

	docs, err := b.LoadDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}
