package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/app"
	"github.com/rhuss/lokal/pkg/engine"
	"github.com/rhuss/lokal/pkg/retrieval"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var noRAG bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with retrieval and generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.Request{
				Kind:       api.KindEnhanced,
				Prompt:     strings.Join(args, " "),
				Parameters: map[string]any{"use_rag": !noRAG},
			}
			return opts.process(cmd, req)
		},
	}
	cmd.Flags().BoolVar(&noRAG, "no-rag", false, "Skip retrieval and only generate")
	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Query the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.Request{Kind: api.KindRAGQuery, Prompt: strings.Join(args, " ")}
			if cmd.Flags().Changed("top-k") {
				req.Parameters = map[string]any{"top_k": topK}
			}
			return opts.process(cmd, req)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of documents to retrieve")
	return cmd
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		model       string
		maxTokens   int
		temperature float64
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate text from a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if model != "" {
				params["model"] = model
			}
			if cmd.Flags().Changed("max-tokens") {
				params["max_tokens"] = maxTokens
			}
			if cmd.Flags().Changed("temperature") {
				params["temperature"] = temperature
			}
			req := &api.Request{Kind: api.KindGenerate, Prompt: strings.Join(args, " "), Parameters: params}
			return opts.process(cmd, req)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 500, "Maximum tokens to generate")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature")
	return cmd
}

// process runs req through a freshly assembled engine and prints the
// response. An unsuccessful response is returned as an error.
func (o *rootOptions) process(cmd *cobra.Command, req *api.Request) error {
	return o.withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
		resp := a.Engine.Process(ctx, req)
		if o.jsonOut {
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
		} else if resp.Success {
			printResult(cmd.OutOrStdout(), resp.Result)
		}
		if !resp.Success {
			return resp.Error
		}
		return nil
	})
}

// printResult writes a human-readable rendering of a response result.
func printResult(w io.Writer, result any) {
	switch r := result.(type) {
	case *engine.Generation:
		fmt.Fprintln(w, r.Text)
	case *retrieval.Answer:
		fmt.Fprintln(w, r.Answer)
		printSources(w, r.Sources)
	case *engine.EnhancedResult:
		fmt.Fprintln(w, r.FinalResult)
		if sources, ok := r.CombinedMetadata["sources"].([]retrieval.Source); ok {
			printSources(w, sources)
		}
		fmt.Fprintln(w)
		for _, s := range r.Steps {
			mark := "ok"
			if !s.Success {
				mark = "failed"
				if s.Error != "" {
					mark += ": " + s.Error
				}
			}
			fmt.Fprintf(w, "  step %-16s %s\n", s.Step, mark)
		}
	case *engine.ToolOutput:
		printValue(w, r.Result)
	default:
		printValue(w, r)
	}
}

func printSources(w io.Writer, sources []retrieval.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range sources {
		label := s.ID
		if src, ok := s.Metadata["source"].(string); ok {
			label = src
		}
		fmt.Fprintf(w, "  %d. %s (score %.3f)\n", i+1, label, s.Score)
	}
}

func printValue(w io.Writer, v any) {
	if s, ok := v.(string); ok {
		fmt.Fprintln(w, s)
		return
	}
	printJSON(w, v)
}
