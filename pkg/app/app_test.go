package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rhuss/lokal/pkg/config"
	"github.com/rhuss/lokal/pkg/engine"
	"github.com/rhuss/lokal/pkg/tools/builtins"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.File.Dir = t.TempDir()
	return &cfg
}

func TestNewPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Engine.SampleData = true

	first, err := New(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := first.Engine.Documents().Len(); got != 4 {
		t.Fatalf("documents = %d, want 4", got)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg.Engine.SampleData = false
	second, err := New(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("New after restart: %v", err)
	}
	defer second.Close()

	if got := second.Engine.Documents().Len(); got != 4 {
		t.Errorf("documents after restart = %d, want 4", got)
	}
	if got := second.Engine.Contexts().Len(); got != 1 {
		t.Errorf("contexts after restart = %d, want 1", got)
	}
	if err := second.Health(ctx); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestNewWithoutStorageOrGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "none"
	cfg.Generator.Type = "none"

	a, err := New(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Persister != nil {
		t.Errorf("Persister = %v, want nil", a.Persister)
	}
	status := a.Engine.Status()
	if status.Services[engine.ServiceGeneration] {
		t.Error("generation should be unavailable")
	}
	if !status.Services[engine.ServiceRetrieval] || !status.Services[engine.ServiceTools] {
		t.Errorf("Services = %v, want retrieval and tools", status.Services)
	}
	if err := a.Health(context.Background()); err != nil {
		t.Errorf("Health without persister: %v", err)
	}
}

func TestNewRegistersBuiltinTools(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	for _, name := range []string{
		builtins.ReadFile, builtins.SearchDocuments, builtins.GetContext,
		builtins.GetSystemInfo, builtins.RetrieveDocuments,
	} {
		if _, ok := a.Tools.Get(name); !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestNewWithIngestDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Local notes about Go."), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.Ingest.Dir = dir

	a, err := New(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Ingester == nil {
		t.Fatal("Ingester = nil, want one for the configured directory")
	}
	report, err := a.Ingester.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Files != 1 {
		t.Errorf("Files = %d, want 1", report.Files)
	}
}

func TestNewRejectsUnknownTypes(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"storage", func(c *config.Config) { c.Storage.Type = "s3" }},
		{"generator", func(c *config.Config) { c.Generator.Type = "llama" }},
		{"embedder", func(c *config.Config) { c.Embedder.Type = "bert" }},
		{"ingest dir", func(c *config.Config) { c.Ingest.Dir = filepath.Join(t.TempDir(), "missing") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			if a, err := New(context.Background(), cfg, Options{}); err == nil {
				a.Close()
				t.Fatal("New succeeded, want error")
			}
		})
	}
}

func TestEngineConfig(t *testing.T) {
	ec := EngineConfig(config.EngineConfig{
		DefaultModel:     "llama3",
		MaxTokens:        100,
		TopK:             7,
		MaxPromptSize:    2048,
		RAGGenerate:      true,
		ContextDocuments: 3,
	})
	if ec.Defaults.Model != "llama3" || ec.Defaults.MaxTokens != 100 || ec.Defaults.TopK != 7 {
		t.Errorf("Defaults = %+v", ec.Defaults)
	}
	if ec.Validation.MaxPromptSize != 2048 {
		t.Errorf("MaxPromptSize = %d, want 2048", ec.Validation.MaxPromptSize)
	}
	if !ec.RAGGenerate || ec.ContextDocuments != 3 {
		t.Errorf("RAGGenerate = %v, ContextDocuments = %d", ec.RAGGenerate, ec.ContextDocuments)
	}
}
