// Command lokal runs the engine in-process from the command line.
//
//	lokal ingest ./docs              load files into the document store
//	lokal ask "what is RAG?"         enhanced request (retrieval + generation)
//	lokal query "local models"       retrieval-augmented query
//	lokal generate "write a summary" text generation
//	lokal tools list | call <name>   inspect and invoke tools
//	lokal status                     service availability and request stats
//	lokal console                    interactive terminal UI
//
// Configuration is read the same way as the server: --config, LOKAL_CONFIG,
// ./config.yaml or /etc/lokal/config.yaml, overridden by LOKAL_* variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
