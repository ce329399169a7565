package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rhuss/lokal/pkg/app"
	"github.com/rhuss/lokal/pkg/config"
	"github.com/rhuss/lokal/pkg/ingest"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		include        []string
		exclude        []string
		chunkSentences int
		watch          bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Load files from a directory into the document store",
		Long: `Ingest reads the files under dir that match the include patterns
(default **/*.md and **/*.txt), embeds them and stores them. Running it again
only adds what changed. With --watch it keeps running and re-ingests files as
they change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adjust := func(cfg *config.Config) {
				if len(args) == 1 {
					cfg.Ingest.Dir = args[0]
				}
				if len(include) > 0 {
					cfg.Ingest.Include = include
				}
				if len(exclude) > 0 {
					cfg.Ingest.Exclude = exclude
				}
				if cmd.Flags().Changed("chunk-sentences") {
					cfg.Ingest.ChunkSentences = chunkSentences
				}
			}
			return opts.withApp(cmd, adjust, func(ctx context.Context, a *app.App) error {
				if a.Ingester == nil {
					return errors.New("no directory to ingest: pass one or set ingest.dir")
				}
				report, err := a.Ingester.Run(ctx)
				if err != nil {
					return err
				}
				if err := opts.printReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !watch {
					return nil
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", a.Ingester.Root())
				err = a.Ingester.Watch(ctx, ingest.WatchOptions{
					Debounce: a.Config.Ingest.Debounce,
					OnReport: func(r *ingest.Report, err error) {
						if err != nil {
							fmt.Fprintln(cmd.ErrOrStderr(), "ingest error:", err)
							return
						}
						opts.printReport(cmd.OutOrStdout(), r)
					},
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "Glob patterns of files to ingest")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Glob patterns of files to skip")
	cmd.Flags().IntVar(&chunkSentences, "chunk-sentences", 0, "Split files into chunks of this many sentences (0 keeps whole files)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep watching the directory for changes")
	return cmd
}

func (o *rootOptions) printReport(w io.Writer, r *ingest.Report) error {
	if o.jsonOut {
		return printJSON(w, r)
	}
	_, err := fmt.Fprintf(w, "Ingested %d files into %d chunks (%d removed, %d skipped)\n",
		r.Files, r.Chunks, r.Removed, len(r.Skipped))
	return err
}
