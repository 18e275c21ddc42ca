// File: cmd/webpilot/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/webpilot9/webpilot/cmd"
)

// main is the entry point of the application.
func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM)
	// for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		// A canceled context means a graceful shutdown via Ctrl+C, not a
		// failure. cmd.Execute handles logging, we just pick the exit code.
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
