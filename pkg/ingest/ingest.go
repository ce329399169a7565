package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/observability"
	"github.com/rhuss/lokal/pkg/retrieval"
)

// Metadata keys set on every ingested document.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
	MetaChunks = "chunks"
)

// DefaultInclude selects Markdown and plain text files.
var DefaultInclude = []string{"**/*.md", "**/*.txt"}

// DefaultMaxFileSize is the largest file ingested when Options.MaxFileSize
// is zero.
const DefaultMaxFileSize = 4 << 20

// Options configures an Ingester.
type Options struct {
	// Root is the directory patterns are matched against.
	Root string

	// Include and Exclude are doublestar patterns over slash separated
	// paths relative to Root. An empty Include selects DefaultInclude.
	Include []string
	Exclude []string

	// ChunkSentences splits files into chunks of that many sentences.
	// Zero stores each file as a single document.
	ChunkSentences int
	ChunkOverlap   int

	// Concurrency bounds the number of files read and embedded at once.
	// Zero selects 4.
	Concurrency int

	MaxFileSize int64
}

// Report summarizes an ingestion run.
type Report struct {
	Files       int      `json:"files"`
	Chunks      int      `json:"chunks"`
	DocumentIDs []string `json:"document_ids"`
	Removed     int      `json:"removed"`
	Skipped     []string `json:"skipped,omitempty"`
}

// Ingester loads files into a retrieval.Store.
type Ingester struct {
	store   *retrieval.Store
	opts    Options
	fsys    fs.FS
	chunker *SentenceChunker
}

// New creates an Ingester for store. The root must be an existing
// directory and every pattern must be valid.
func New(store *retrieval.Store, opts Options) (*Ingester, error) {
	if store == nil {
		return nil, errors.New("ingest: document store is required")
	}
	if opts.Root == "" {
		return nil, errors.New("ingest: root directory is required")
	}
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingest: %s is not a directory", opts.Root)
	}
	if len(opts.Include) == 0 {
		opts.Include = DefaultInclude
	}
	for _, p := range append(slices.Clone(opts.Include), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("ingest: invalid pattern %q", p)
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	in := &Ingester{store: store, opts: opts, fsys: os.DirFS(opts.Root)}
	if opts.ChunkSentences > 0 {
		in.chunker = NewSentenceChunker(opts.ChunkSentences, opts.ChunkOverlap)
	}
	return in, nil
}

// Root returns the ingested directory.
func (in *Ingester) Root() string { return in.opts.Root }

// Match reports whether the relative path rel is selected by the include
// and exclude patterns.
func (in *Ingester) Match(rel string) bool {
	for _, p := range in.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range in.opts.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Files returns the selected files, sorted and relative to the root.
func (in *Ingester) Files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range in.opts.Include {
		matches, err := doublestar.Glob(in.fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", p, err)
		}
		for _, m := range matches {
			if seen[m] || !in.Match(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	slices.Sort(files)
	return files, nil
}

// Run ingests every selected file.
func (in *Ingester) Run(ctx context.Context) (*Report, error) {
	files, err := in.Files()
	if err != nil {
		return nil, err
	}
	return in.IngestFiles(ctx, files)
}

// prepared is the embedded content of one file.
type prepared struct {
	inputs  []retrieval.Input
	skipped bool
}

// IngestFiles reads, chunks and embeds the given relative paths, then
// stores the chunks in path order. Chunks previously stored for a path that
// no longer occur in it are removed.
func (in *Ingester) IngestFiles(ctx context.Context, rels []string) (*Report, error) {
	results := make([]prepared, len(rels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Concurrency)
	for i, rel := range rels {
		g.Go(func() error {
			p, err := in.prepare(gctx, rel)
			if err != nil {
				observability.IngestFilesTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("ingesting %s: %w", rel, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{DocumentIDs: []string{}}
	var inputs []retrieval.Input
	keep := make(map[string]map[string]bool)
	for i, p := range results {
		if p.skipped {
			observability.IngestFilesTotal.WithLabelValues("skipped").Inc()
			report.Skipped = append(report.Skipped, rels[i])
			continue
		}
		report.Files++
		report.Chunks += len(p.inputs)
		inputs = append(inputs, p.inputs...)
		ids := make(map[string]bool, len(p.inputs))
		for _, input := range p.inputs {
			ids[retrieval.DocumentID(input.Content)] = true
		}
		keep[rels[i]] = ids
	}

	ids, err := in.store.AddMany(ctx, inputs)
	report.DocumentIDs = append(report.DocumentIDs, ids...)
	if err != nil {
		return report, err
	}
	observability.IngestFilesTotal.WithLabelValues("ok").Add(float64(report.Files))

	report.Removed = in.removeStale(ctx, keep)
	slog.Info("ingestion finished",
		"root", in.opts.Root,
		"files", report.Files,
		"chunks", report.Chunks,
		"removed", report.Removed,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func (in *Ingester) prepare(ctx context.Context, rel string) (prepared, error) {
	info, err := fs.Stat(in.fsys, rel)
	if errors.Is(err, fs.ErrNotExist) {
		debug.Log("ingest", "file vanished", "path", rel)
		return prepared{skipped: true}, nil
	}
	if err != nil {
		return prepared{}, err
	}
	if info.Size() > in.opts.MaxFileSize {
		slog.Warn("skipping large file", "path", rel, "size", info.Size(), "max", in.opts.MaxFileSize)
		return prepared{skipped: true}, nil
	}
	data, err := fs.ReadFile(in.fsys, rel)
	if err != nil {
		return prepared{}, err
	}
	if !utf8.Valid(data) {
		slog.Warn("skipping non UTF-8 file", "path", rel)
		return prepared{skipped: true}, nil
	}

	chunks := in.chunks(string(data))
	if len(chunks) == 0 {
		debug.Log("ingest", "skipping empty file", "path", rel)
		return prepared{skipped: true}, nil
	}

	embedder := in.store.Embedder()
	inputs := make([]retrieval.Input, len(chunks))
	for i, c := range chunks {
		vec, err := embedder.Embed(ctx, c)
		if err != nil {
			return prepared{}, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		inputs[i] = retrieval.Input{
			Content: c,
			Metadata: map[string]any{
				MetaSource: rel,
				MetaChunk:  i,
				MetaChunks: len(chunks),
				"filename": path.Base(rel),
			},
			Embedding: vec,
		}
	}
	debug.Log("ingest", "file prepared", "path", rel, "chunks", len(chunks))
	return prepared{inputs: inputs}, nil
}

func (in *Ingester) chunks(text string) []string {
	if in.chunker != nil {
		return in.chunker.Chunk(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []string{text}
}

// removeStale deletes documents whose source is a key of keep but whose id
// is not in the kept set.
func (in *Ingester) removeStale(ctx context.Context, keep map[string]map[string]bool) int {
	var stale []string
	for _, d := range in.store.List() {
		src, _ := d.Metadata[MetaSource].(string)
		ids, ok := keep[src]
		if ok && !ids[d.ID] {
			stale = append(stale, d.ID)
		}
	}
	if len(stale) == 0 {
		return 0
	}
	return in.store.Remove(ctx, stale...)
}

// Forget removes every document ingested from rel.
func (in *Ingester) Forget(ctx context.Context, rel string) int {
	return in.removeStale(ctx, map[string]map[string]bool{rel: {}})
}
