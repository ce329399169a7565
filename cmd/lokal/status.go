package main

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/lokal/pkg/app"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service availability and stored data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				caps := a.Engine.Capabilities()
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"status":       a.Engine.Status(),
						"capabilities": caps,
					})
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				names := make([]string, 0, len(caps.Services))
				for name := range caps.Services {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					state := "unavailable"
					if caps.Services[name] {
						state = "available"
					}
					fmt.Fprintf(tw, "%s\t%s\n", name, state)
				}
				if caps.Generator != "" {
					fmt.Fprintf(tw, "generator\t%s\n", caps.Generator)
				}
				if st := caps.DocumentStats; st != nil {
					fmt.Fprintf(tw, "documents\t%d (avg %.0f chars, %d dims)\n",
						st.TotalDocuments, st.AverageDocumentLength, st.EmbeddingDimension)
				}
				fmt.Fprintf(tw, "contexts\t%d\n", caps.ContextCount)
				fmt.Fprintf(tw, "tools\t%d\n", len(caps.Tools))
				if a.Persister != nil {
					health := "ok"
					if err := a.Health(ctx); err != nil {
						health = err.Error()
					}
					fmt.Fprintf(tw, "storage\t%s (%s)\n", a.Persister.Name(), health)
				}
				return tw.Flush()
			})
		},
	}
}

func newSampleDataCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sample-data",
		Short: "Add the sample documents and context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.SetupSampleData(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sample data ready: %d documents, context %s\n",
					len(out.DocumentIDs), out.ContextID)
				return err
			})
		},
	}
}
