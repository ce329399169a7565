package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/lokal/pkg/app"
	"github.com/rhuss/lokal/pkg/config"
	"github.com/rhuss/lokal/pkg/debug"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	jsonOut    bool

	// logWriter replaces stderr for commands that own the terminal.
	logWriter io.Writer
}

func (o *rootOptions) logOutput(cmd *cobra.Command) io.Writer {
	if o.logWriter != nil {
		return o.logWriter
	}
	return cmd.ErrOrStderr()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "lokal",
		Short: "Local-first retrieval and orchestration engine",
		Long: `lokal answers questions over your own documents with local models.
It ingests files into a vector index, keeps contexts, runs tools and
combines them in an enhanced retrieval + generation workflow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newIngestCmd(opts),
		newAskCmd(opts),
		newQueryCmd(opts),
		newGenerateCmd(opts),
		newToolsCmd(opts),
		newStatusCmd(opts),
		newSampleDataCmd(opts),
		newConsoleCmd(opts),
	)
	return cmd
}

// loadConfig reads the configuration and sets up logging on stderr.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.Level
	if o.verbose {
		level = "DEBUG"
	} else if os.Getenv("LOKAL_LOG_LEVEL") == "" && cfg.Logging.Level == "INFO" {
		// Keep informational startup logs out of command output.
		level = "WARN"
	}
	debug.Setup(o.logOutput(cmd), cfg.Logging.Debug, level)
	return cfg, nil
}

// withApp assembles the application, runs fn and closes everything.
func (o *rootOptions) withApp(cmd *cobra.Command, adjust func(*config.Config), fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
