package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/config"
	"github.com/rhuss/lokal/pkg/contextstore"
	"github.com/rhuss/lokal/pkg/engine"
	"github.com/rhuss/lokal/pkg/ingest"
	"github.com/rhuss/lokal/pkg/provider"
	"github.com/rhuss/lokal/pkg/provider/mock"
	"github.com/rhuss/lokal/pkg/provider/openaicompat"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/storage"
	"github.com/rhuss/lokal/pkg/storage/file"
	"github.com/rhuss/lokal/pkg/storage/postgres"
	"github.com/rhuss/lokal/pkg/storage/sqlite"
	"github.com/rhuss/lokal/pkg/tools"
	"github.com/rhuss/lokal/pkg/tools/builtins"
	mcptools "github.com/rhuss/lokal/pkg/tools/mcp"
)

// App is an assembled lokal instance.
type App struct {
	Config *config.Config
	Engine *engine.Engine
	Tools  *tools.Registry

	// Persister is nil when storage type is "none".
	Persister storage.Persister

	// Ingester is nil when no ingest directory is configured.
	Ingester *ingest.Ingester

	bridge  *mcptools.Bridge
	closers []func() error
}

// Options adjust assembly for callers that do not need every component.
type Options struct {
	// SkipMCP leaves remote MCP servers unconnected.
	SkipMCP bool
}

// New assembles an App from cfg and restores persisted state. On error,
// everything created so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Persister, err = NewPersister(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	if a.Persister != nil {
		a.closers = append(a.closers, a.Persister.Close)
	}

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	a.addCloser(gen)

	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	a.addCloser(emb)

	var (
		docPersister storage.DocumentPersister
		ctxPersister storage.ContextPersister
	)
	if a.Persister != nil {
		docPersister, ctxPersister = a.Persister, a.Persister
	}
	docs := retrieval.New(emb, docPersister)
	contexts := contextstore.New(ctxPersister)

	a.Tools = tools.NewRegistry()
	builtins.Register(a.Tools, builtins.Deps{
		Contexts:    contexts,
		Documents:   docs,
		FileRoot:    cfg.Tools.FileRoot,
		MaxFileSize: cfg.Tools.MaxFileSize,
	})
	if !opts.SkipMCP && len(cfg.MCP.Servers) > 0 {
		a.bridge = mcptools.Connect(ctx, mcpConfig(cfg.MCP.Servers))
		n := a.bridge.Register(ctx, a.Tools)
		slog.Info("MCP tools imported", "servers", len(cfg.MCP.Servers), "tools", n)
		a.closers = append(a.closers, a.bridge.Close)
	}

	svc := engine.Services{Documents: docs, Contexts: contexts, Tools: a.Tools}
	if gen != nil {
		svc.Generator = gen
	}
	a.Engine = engine.New(svc, EngineConfig(cfg.Engine))

	if err := a.Engine.Load(ctx); err != nil {
		return nil, err
	}

	if cfg.Ingest.Dir != "" {
		a.Ingester, err = ingest.New(docs, ingest.Options{
			Root:           cfg.Ingest.Dir,
			Include:        cfg.Ingest.Include,
			Exclude:        cfg.Ingest.Exclude,
			ChunkSentences: cfg.Ingest.ChunkSentences,
			ChunkOverlap:   cfg.Ingest.ChunkOverlap,
			Concurrency:    cfg.Ingest.Concurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("creating ingester: %w", err)
		}
	}

	if cfg.Engine.SampleData {
		if _, err := a.Engine.SetupSampleData(ctx); err != nil {
			return nil, fmt.Errorf("loading sample data: %w", err)
		}
	}
	return a, nil
}

func (a *App) addCloser(v any) {
	if c, ok := v.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
}

// Health checks the persister, if any.
func (a *App) Health(ctx context.Context) error {
	if a.Persister == nil {
		return nil
	}
	return a.Persister.HealthCheck(ctx)
}

// Close releases every component in reverse creation order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// EngineConfig converts the engine section of the configuration.
func EngineConfig(c config.EngineConfig) engine.Config {
	ec := engine.DefaultConfig()
	ec.Defaults = api.Defaults{
		Model:             c.DefaultModel,
		MaxTokens:         c.MaxTokens,
		EnhancedMaxTokens: c.EnhancedMaxTokens,
		Temperature:       c.Temperature,
		TopK:              c.TopK,
		EnhancedTopK:      c.EnhancedTopK,
	}
	ec.Validation.MaxPromptSize = c.MaxPromptSize
	ec.RequestTimeout = c.RequestTimeout
	ec.RAGGenerate = c.RAGGenerate
	ec.ContextDocuments = c.ContextDocuments
	return ec
}

// NewPersister opens the configured storage backend. It returns nil for
// type "none".
func NewPersister(ctx context.Context, c config.StorageConfig) (storage.Persister, error) {
	var (
		p   storage.Persister
		err error
	)
	switch c.Type {
	case "none", "":
		slog.Info("storage disabled")
		return nil, nil
	case "file":
		p, err = file.New(file.Config{Dir: c.File.Dir, Namespace: c.Namespace})
	case "sqlite":
		p, err = sqlite.Open(ctx, sqlite.Config{Path: c.SQLite.Path, Namespace: c.Namespace})
	case "postgres":
		p, err = postgres.New(ctx, postgres.Config{
			DSN:            c.Postgres.DSN,
			Namespace:      c.Namespace,
			MaxConns:       c.Postgres.MaxConns,
			MigrateOnStart: c.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", c.Type, err)
	}
	slog.Info("storage enabled", "type", p.Name(), "namespace", c.Namespace)
	return p, nil
}

// NewGenerator creates the configured generation backend. It returns nil
// for type "none".
func NewGenerator(c config.GeneratorConfig) (provider.Generator, error) {
	switch c.Type {
	case "none":
		slog.Info("generation disabled")
		return nil, nil
	case "mock", "":
		return mock.NewGenerator(), nil
	case "openai":
		g, err := openaicompat.NewGenerator(openaicompat.Config{
			BaseURL: c.BaseURL,
			APIKey:  c.APIKey,
			Model:   c.Model,
			Timeout: c.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating generator: %w", err)
		}
		slog.Info("generator configured", "type", "openai", "url", c.BaseURL, "model", c.Model)
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generator type %q", c.Type)
	}
}

// NewEmbedder creates the configured embedding backend.
func NewEmbedder(c config.EmbedderConfig) (provider.Embedder, error) {
	switch c.Type {
	case "mock", "":
		return mock.NewHashEmbedder(c.Dimensions), nil
	case "openai":
		e, err := openaicompat.NewEmbedder(openaicompat.Config{
			BaseURL: c.BaseURL,
			APIKey:  c.APIKey,
			Model:   c.Model,
			Timeout: c.Timeout,
		}, c.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		slog.Info("embedder configured", "type", "openai", "url", c.BaseURL, "model", c.Model)
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", c.Type)
	}
}

func mcpConfig(servers []config.MCPServerConfig) mcptools.Config {
	out := mcptools.Config{Servers: make([]mcptools.ServerConfig, len(servers))}
	for i, s := range servers {
		out.Servers[i] = mcptools.ServerConfig{
			Name:       s.Name,
			Transport:  s.Transport,
			URL:        s.URL,
			Headers:    s.Headers,
			ToolPrefix: s.ToolPrefix,
		}
	}
	return out
}
