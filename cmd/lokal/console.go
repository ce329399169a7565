package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/lokal/pkg/app"
	"github.com/rhuss/lokal/pkg/console"
)

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Start the interactive terminal console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The console owns the terminal; logs go to a file or nowhere.
			opts.logWriter = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				opts.logWriter = f
			}

			return opts.withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				caps := a.Engine.Capabilities()
				docs := 0
				if caps.DocumentStats != nil {
					docs = caps.DocumentStats.TotalDocuments
				}
				summary := fmt.Sprintf("%d documents, %d contexts, %d tools", docs, caps.ContextCount, len(caps.Tools))
				return console.Run(ctx, a.Engine, summary)
			})
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the console runs")
	return cmd
}
