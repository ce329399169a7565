package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rhuss/lokal/pkg/api"
)

// isolate runs the test in an empty directory with its own data dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LOKAL_CONFIG", "")
	t.Setenv("LOKAL_ENV_FILE", "")
	t.Setenv("LOKAL_DATA_DIR", filepath.Join(dir, "data"))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerate(t *testing.T) {
	isolate(t)

	out, err := run(t, "generate", "write", "a", "summary")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "[LOCAL AI SUMMARY]") {
		t.Errorf("output = %q, want a summary", out)
	}
}

func TestGenerateWithoutGenerator(t *testing.T) {
	isolate(t)
	t.Setenv("LOKAL_GENERATOR", "none")

	_, err := run(t, "generate", "hello")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeProviderUnavailable {
		t.Errorf("error = %v, want provider_unavailable", err)
	}
}

func TestIngestThenQuery(t *testing.T) {
	dir := isolate(t)
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "go.md"), []byte("Goroutines are cheap threads managed by the Go runtime."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "pg.txt"), []byte("Postgres stores rows in heap pages."), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "ingest", docs)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "Ingested 2 files") {
		t.Errorf("ingest output = %q", out)
	}

	out, err = run(t, "query", "--top-k", "1", "Goroutines are cheap threads managed by the Go runtime.")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "Sources:") || !strings.Contains(out, "go.md") {
		t.Errorf("query output = %q, want go.md as a source", out)
	}

	out, err = run(t, "--json", "ask", "What are goroutines?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var resp api.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("ask output is not JSON: %v\n%s", err, out)
	}
	if !resp.Success {
		t.Errorf("ask failed: %+v", resp.Error)
	}
}

func TestIngestWithoutDir(t *testing.T) {
	isolate(t)
	if _, err := run(t, "ingest"); err == nil {
		t.Fatal("ingest without a directory should fail")
	}
}

func TestToolsListAndCall(t *testing.T) {
	isolate(t)

	out, err := run(t, "tools", "list")
	if err != nil {
		t.Fatalf("tools list: %v", err)
	}
	for _, name := range []string{"read_file", "get_system_info", "retrieve_documents"} {
		if !strings.Contains(out, name) {
			t.Errorf("tools list missing %q:\n%s", name, out)
		}
	}

	if _, err := run(t, "sample-data"); err != nil {
		t.Fatalf("sample-data: %v", err)
	}
	out, err = run(t, "tools", "call", "search_documents", "query=blog")
	if err != nil {
		t.Fatalf("tools call: %v", err)
	}
	if !strings.Contains(out, "Sample Blog Context") {
		t.Errorf("search_documents output = %q", out)
	}

	_, err = run(t, "tools", "call", "get_context", "context_id=ctx_missing")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("error = %v, want an APIError", err)
	}

	_, err = run(t, "tools", "call", "nope")
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestStatus(t *testing.T) {
	isolate(t)

	out, err := run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"local_ai", "available", "storage", "file (ok)"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestToolParams(t *testing.T) {
	got, err := toolParams(`{"query":"x"}`, []string{"top_k=2", "exact=true", "label=hello world"})
	if err != nil {
		t.Fatalf("toolParams: %v", err)
	}
	if got["query"] != "x" || got["top_k"] != float64(2) || got["exact"] != true || got["label"] != "hello world" {
		t.Errorf("params = %#v", got)
	}

	if _, err := toolParams("", []string{"novalue"}); err == nil {
		t.Error("pair without = should fail")
	}
	if _, err := toolParams("[1]", nil); err == nil {
		t.Error("non-object JSON should fail")
	}
}
