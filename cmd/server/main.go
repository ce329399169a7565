// Command server runs the lokal HTTP server.
//
// Configuration is loaded from a YAML file (LOKAL_CONFIG, ./config.yaml or
// /etc/lokal/config.yaml) and LOKAL_* environment variables:
//
//	LOKAL_PORT          - Listen port (default: 8080)
//	LOKAL_GENERATOR     - Generation backend: "mock", "openai" or "none"
//	LOKAL_EMBEDDER      - Embedding backend: "mock" or "openai"
//	LOKAL_STORAGE       - Storage: "none", "file", "sqlite" or "postgres"
//	LOKAL_INGEST_DIR    - Directory to ingest documents from
//	LOKAL_INGEST_WATCH  - Re-ingest changed files while running
//	LOKAL_DEBUG         - Debug categories (e.g. "engine,retrieval" or "all")
//	LOKAL_LOG_LEVEL     - Log level: TRACE, DEBUG, INFO, WARN, ERROR
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/lokal/pkg/app"
	"github.com/rhuss/lokal/pkg/config"
	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/ingest"
	mcptools "github.com/rhuss/lokal/pkg/tools/mcp"
	transporthttp "github.com/rhuss/lokal/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("closing components", "error", err)
		}
	}()

	srv, err := newServer(cfg, a)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if a.Ingester != nil && (cfg.Ingest.OnStart || cfg.Ingest.Watch) {
		g.Go(func() error {
			return runIngest(ctx, cfg, a.Ingester)
		})
	}

	slog.Info("lokal ready", "port", cfg.Server.Port, "services", a.Engine.Status().Services)
	err = g.Wait()

	// Persist the final state regardless of how serving ended.
	if saveErr := a.Engine.Save(context.WithoutCancel(ctx)); saveErr != nil {
		slog.Error("saving state on shutdown", "error", saveErr)
	}
	return err
}

// newServer builds the HTTP server with the metrics and MCP endpoints the
// configuration enables.
func newServer(cfg *config.Config, a *app.App) (*transporthttp.Server, error) {
	srv := transporthttp.NewServer(a.Engine,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithHealth(a.Health),
	)

	if cfg.Observability.Metrics.Enabled {
		srv.Mount("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		slog.Info("metrics enabled", "path", cfg.Observability.Metrics.Path)
	}

	if cfg.MCP.Serve.Enabled {
		mcpServer, err := mcptools.NewServer(a.Tools, mcptools.ServerOptions{
			AllowedTools: cfg.MCP.Serve.AllowedTools,
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		srv.Mount(cfg.MCP.Serve.Path, mcptools.Handler(mcpServer))
		slog.Info("MCP server enabled", "path", cfg.MCP.Serve.Path)
	}
	return srv, nil
}

// runIngest loads the ingest directory once and then, if configured,
// watches it until ctx is done. Ingestion errors are logged; they never
// stop the server.
func runIngest(ctx context.Context, cfg *config.Config, in *ingest.Ingester) error {
	report, err := in.Run(ctx)
	if err != nil {
		slog.Error("initial ingest failed", "dir", in.Root(), "error", err)
	} else {
		slog.Info("initial ingest complete", "dir", in.Root(), "files", report.Files, "chunks", report.Chunks)
	}
	if !cfg.Ingest.Watch {
		return nil
	}

	err = in.Watch(ctx, ingest.WatchOptions{
		Debounce: cfg.Ingest.Debounce,
		OnReport: func(r *ingest.Report, err error) {
			if err != nil {
				slog.Error("ingest failed", "error", err)
			}
		},
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
