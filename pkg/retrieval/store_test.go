package retrieval

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rhuss/lokal/pkg/provider/mock"
	"github.com/rhuss/lokal/pkg/storage"
	"github.com/rhuss/lokal/pkg/storage/file"
	"github.com/rhuss/lokal/pkg/storage/memory"
)

// tableEmbedder returns fixed vectors per text and counts calls.
type tableEmbedder struct {
	vectors map[string][]float32
	dims    int
	calls   atomic.Int64
}

func (e *tableEmbedder) Name() string    { return "table" }
func (e *tableEmbedder) Dimensions() int { return e.dims }
func (e *tableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func TestDocumentID(t *testing.T) {
	if got := DocumentID("hello"); got != "5d41402abc4b2a76" {
		t.Errorf("DocumentID(hello) = %q, want 5d41402abc4b2a76", got)
	}
	if len(DocumentID("")) != 16 {
		t.Error("DocumentID should always be 16 characters")
	}
}

func TestStore_IdempotentAdd(t *testing.T) {
	s := New(mock.NewHashEmbedder(0), nil)
	ctx := context.Background()

	id1, err := s.Add(ctx, "Local AI keeps data private.", map[string]any{"source": "first"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	id2, err := s.Add(ctx, "Local AI keeps data private.", map[string]any{"source": "second"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if id1 != id2 {
		t.Errorf("ids differ: %q vs %q", id1, id2)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	doc, err := s.Get(id1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Metadata["source"] != "first" {
		t.Errorf("metadata = %v, want first write to win", doc.Metadata)
	}
}

func TestStore_AddCopiesMetadata(t *testing.T) {
	s := New(mock.NewHashEmbedder(8), nil)
	meta := map[string]any{"k": "v"}
	id, _ := s.Add(context.Background(), "x", meta)
	meta["k"] = "changed"

	doc, _ := s.Get(id)
	if doc.Metadata["k"] != "v" {
		t.Errorf("stored metadata aliased caller map: %v", doc.Metadata)
	}
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	s := New(mock.NewHashEmbedder(8), nil)
	ctx := context.Background()
	id, _ := s.Add(ctx, "private notes", map[string]any{
		"source": "notes.md",
		"tags":   []string{"local"},
	})

	doc, _ := s.Get(id)
	doc.Metadata["source"] = "changed"
	doc.Metadata["tags"].([]any)[0] = "changed"
	doc.Embedding[0] = 42

	s.List()[0].Metadata["source"] = "changed"
	matches, _ := s.Retrieve(ctx, "private notes", 1)
	matches[0].Document.Metadata["extra"] = true

	got, _ := s.Get(id)
	want := map[string]any{"source": "notes.md", "tags": []any{"local"}}
	if !reflect.DeepEqual(got.Metadata, want) {
		t.Errorf("stored metadata = %#v, want %#v", got.Metadata, want)
	}
	if got.Embedding[0] == 42 {
		t.Error("stored embedding was modified through Get")
	}
}

func TestStore_FileRoundTripKeepsMetadataShape(t *testing.T) {
	ctx := context.Background()
	p, err := file.New(file.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("file.New: %v", err)
	}

	s := New(mock.NewHashEmbedder(0), p)
	if _, err := s.Add(ctx, "chunked document", map[string]any{
		"source": "guide.md",
		"chunk":  2,
		"tags":   []string{"rag", "local"},
		"nested": map[string]any{"page": 7, "draft": false},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reloaded := New(mock.NewHashEmbedder(0), p)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	before, after := s.List()[0].Metadata, reloaded.List()[0].Metadata
	if !reflect.DeepEqual(before, after) {
		t.Errorf("metadata after reload = %#v, want %#v", after, before)
	}
	if before["chunk"] != float64(2) {
		t.Errorf("chunk = %#v, want float64(2)", before["chunk"])
	}
}

func TestStore_AddRejectsUnencodableMetadata(t *testing.T) {
	s := New(mock.NewHashEmbedder(8), nil)
	if _, err := s.Add(context.Background(), "x", map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("Add with unencodable metadata should fail")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := New(mock.NewHashEmbedder(8), nil)
	if _, err := s.Get("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestStore_RetrieveBoundedAndSorted(t *testing.T) {
	s := New(mock.NewHashEmbedder(0), nil)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := s.Add(ctx, fmt.Sprintf("document number %d", i), nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	for _, k := range []int{1, 3, 10, 25} {
		matches, err := s.Retrieve(ctx, "document number 4", k)
		if err != nil {
			t.Fatalf("Retrieve(k=%d): %v", k, err)
		}
		want := k
		if want > 10 {
			want = 10
		}
		if len(matches) != want {
			t.Errorf("Retrieve(k=%d) returned %d, want %d", k, len(matches), want)
		}
		for i := 1; i < len(matches); i++ {
			if matches[i].Score > matches[i-1].Score {
				t.Errorf("k=%d: scores not descending at %d: %v > %v", k, i, matches[i].Score, matches[i-1].Score)
			}
		}
	}

	matches, _ := s.Retrieve(ctx, "document number 4", 1)
	if matches[0].Document.Content != "document number 4" || matches[0].Score < 0.999 {
		t.Errorf("exact match not ranked first: %+v", matches[0])
	}
}

func TestStore_RetrieveTiesKeepInsertionOrder(t *testing.T) {
	e := &tableEmbedder{dims: 2, vectors: map[string][]float32{
		"c": {1, 0},
		"a": {1, 0},
		"b": {1, 0},
		"z": {0, 1},
		"q": {1, 0},
	}}
	s := New(e, nil)
	ctx := context.Background()
	for _, text := range []string{"c", "z", "a", "b"} {
		if _, err := s.Add(ctx, text, nil); err != nil {
			t.Fatalf("Add(%s): %v", text, err)
		}
	}

	matches, err := s.Retrieve(ctx, "q", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	got := []string{matches[0].Document.Content, matches[1].Document.Content, matches[2].Document.Content}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestStore_RetrieveEmpty(t *testing.T) {
	e := &tableEmbedder{dims: 2, vectors: map[string][]float32{}}
	s := New(e, nil)

	matches, err := s.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve on empty store: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("matches = %v, want empty non-nil slice", matches)
	}
	if e.calls.Load() != 0 {
		t.Error("embedder should not be called for an empty store")
	}

	e.vectors["x"] = []float32{1, 0}
	s.Add(context.Background(), "x", nil)
	if m, _ := s.Retrieve(context.Background(), "x", 0); len(m) != 0 {
		t.Errorf("k=0 returned %d matches", len(m))
	}
}

func TestStore_DimensionMismatch(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{
		"two":   {1, 0},
		"three": {1, 0, 0},
	}}
	s := New(e, nil)
	ctx := context.Background()

	if _, err := s.Add(ctx, "two", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err := s.Add(ctx, "three", nil)
	if !errors.Is(err, storage.ErrDimensionMismatch) {
		t.Fatalf("Add error = %v, want ErrDimensionMismatch", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after rejected add, want 1", s.Len())
	}
	if _, err := s.Retrieve(ctx, "three", 1); !errors.Is(err, storage.ErrDimensionMismatch) {
		t.Errorf("Retrieve error = %v, want ErrDimensionMismatch", err)
	}
}

func TestStore_EmbedFailure(t *testing.T) {
	s := New(&tableEmbedder{dims: 2, vectors: map[string][]float32{}}, nil)
	if _, err := s.Add(context.Background(), "unknown", nil); err == nil {
		t.Error("expected embedding error")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.DocumentPersister{
		"memory": func(t *testing.T) storage.DocumentPersister { return memory.New() },
		"file": func(t *testing.T) storage.DocumentPersister {
			fs, err := file.New(file.Config{Dir: t.TempDir()})
			if err != nil {
				t.Fatalf("file.New: %v", err)
			}
			return fs
		},
	}

	for name, newPersister := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := newPersister(t)

			s := New(mock.NewHashEmbedder(0), p)
			s.Add(ctx, "Local AI processing", map[string]any{"category": "privacy"})
			s.Add(ctx, "Nexa SDK integration", map[string]any{"category": "sdk"})
			s.Add(ctx, "RAG systems", map[string]any{"category": "rag"})

			reloaded := New(mock.NewHashEmbedder(0), p)
			if err := reloaded.Load(ctx); err != nil {
				t.Fatalf("Load: %v", err)
			}

			a, b := s.List(), reloaded.List()
			if len(a) != len(b) {
				t.Fatalf("len = %d, want %d", len(b), len(a))
			}
			for i := range a {
				if a[i].ID != b[i].ID || a[i].Content != b[i].Content {
					t.Errorf("doc %d = %+v, want %+v", i, b[i], a[i])
				}
				if a[i].Metadata["category"] != b[i].Metadata["category"] {
					t.Errorf("doc %d metadata = %v, want %v", i, b[i].Metadata, a[i].Metadata)
				}
				for j := range a[i].Embedding {
					if a[i].Embedding[j] != b[i].Embedding[j] {
						t.Fatalf("doc %d embedding differs at %d", i, j)
					}
				}
			}

			m1, _ := s.Retrieve(ctx, "RAG systems", 3)
			m2, _ := reloaded.Retrieve(ctx, "RAG systems", 3)
			for i := range m1 {
				if m1[i].Document.ID != m2[i].Document.ID || m1[i].Score != m2[i].Score {
					t.Errorf("retrieval differs after reload at %d", i)
				}
			}
		})
	}
}

func TestStore_LoadReembedsMissingVectors(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	p.SaveDocuments(ctx, []storage.Document{{ID: DocumentID("text"), Content: "text"}})

	s := New(mock.NewHashEmbedder(16), p)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	doc, err := s.Get(DocumentID("text"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(doc.Embedding) != 16 {
		t.Errorf("embedding len = %d, want 16", len(doc.Embedding))
	}
}

func TestStore_LoadRejectsWrongDimensions(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	p.SaveDocuments(ctx, []storage.Document{{ID: "a", Content: "a", Embedding: []float32{1, 2, 3}}})

	s := New(mock.NewHashEmbedder(16), p)
	s.Add(ctx, "existing", nil)

	if err := s.Load(ctx); !errors.Is(err, storage.ErrDimensionMismatch) {
		t.Fatalf("Load error = %v, want ErrDimensionMismatch", err)
	}
	if s.Len() != 1 {
		t.Error("failed load should leave the current state untouched")
	}
}

func TestStore_PersistenceFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	p.FailWith(errors.New("disk full"))

	s := New(mock.NewHashEmbedder(0), p)
	id, err := s.Add(ctx, "still indexed", nil)
	if err != nil {
		t.Fatalf("Add should not fail on persistence error: %v", err)
	}
	if _, err := s.Get(id); err != nil {
		t.Errorf("document missing after failed save: %v", err)
	}
	if err := s.Save(ctx); err == nil {
		t.Error("explicit Save should report the failure")
	}

	p.FailWith(nil)
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save after recovery: %v", err)
	}
	docs, _ := p.LoadDocuments(ctx)
	if len(docs) != 1 {
		t.Errorf("persisted %d documents, want 1", len(docs))
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	s := New(mock.NewHashEmbedder(0), memory.New())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(ctx, fmt.Sprintf("doc %d", i%10), nil)
			s.Retrieve(ctx, "doc 1", 3)
		}(i)
	}
	wg.Wait()

	if s.Len() != 10 {
		t.Errorf("Len() = %d, want 10", s.Len())
	}
}

func TestStore_AddManySavesOnce(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	s := New(mock.NewHashEmbedder(0), p)

	ids, err := s.AddMany(ctx, []Input{{Content: "a"}, {Content: "b"}, {Content: "a"}})
	if err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	if len(ids) != 3 || ids[0] != ids[2] {
		t.Errorf("ids = %v", ids)
	}
	if p.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", p.Saves())
	}
}

func TestStore_Stats(t *testing.T) {
	s := New(mock.NewHashEmbedder(32), nil)
	if st := s.Stats(); st.TotalDocuments != 0 || st.AverageDocumentLength != 0 {
		t.Errorf("empty Stats = %+v", st)
	}
	s.Add(context.Background(), "abcd", nil)
	s.Add(context.Background(), "ab", nil)

	st := s.Stats()
	if st.TotalDocuments != 2 || st.TotalEmbeddings != 2 || st.AverageDocumentLength != 3 || st.EmbeddingDimension != 32 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestStore_AddManyUsesProvidedEmbedding(t *testing.T) {
	emb := &tableEmbedder{dims: 2, vectors: map[string][]float32{}}
	s := New(emb, nil)

	ids, err := s.AddMany(context.Background(), []Input{
		{Content: "a", Embedding: []float32{1, 0}},
		{Content: "b", Embedding: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if emb.calls.Load() != 0 {
		t.Errorf("embedder called %d times, want 0", emb.calls.Load())
	}

	_, err = s.AddMany(context.Background(), []Input{{Content: "c", Embedding: []float32{1, 2, 3}}})
	if !errors.Is(err, storage.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestStore_Remove(t *testing.T) {
	persister := memory.New()
	s := New(mock.NewHashEmbedder(8), persister)
	ctx := context.Background()

	a, _ := s.Add(ctx, "alpha", nil)
	b, _ := s.Add(ctx, "beta", nil)
	c, _ := s.Add(ctx, "gamma", nil)
	saves := persister.Saves()

	if n := s.Remove(ctx, b, "missing"); n != 1 {
		t.Errorf("Remove = %d, want 1", n)
	}
	if _, err := s.Get(b); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get(removed) err = %v, want ErrNotFound", err)
	}
	docs := s.List()
	if len(docs) != 2 || docs[0].ID != a || docs[1].ID != c {
		t.Errorf("remaining = %v", docs)
	}
	if got, _ := s.Get(c); got.Content != "gamma" {
		t.Errorf("index not rebuilt: %+v", got)
	}
	if persister.Saves() != saves+1 {
		t.Errorf("saves = %d, want %d", persister.Saves(), saves+1)
	}

	if n := s.Remove(ctx, "missing"); n != 0 {
		t.Errorf("Remove(missing) = %d, want 0", n)
	}
	if persister.Saves() != saves+1 {
		t.Error("a no-op remove must not save")
	}
}
