// Command sceneforge runs multi-agent LLM scenes from a YAML or TOML scene
// file and archives the resulting transcripts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newRegistry()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sceneforge: %v\n", err)
		stop()
		os.Exit(1)
	}
}
