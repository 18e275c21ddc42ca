// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/artifacts"
	"github.com/webpilot9/webpilot/internal/observability"
	"github.com/webpilot9/webpilot/internal/toolserver"
)

// serveCmd is an explicit alias for the default behavior of the root
// command, kept so `webpilot serve` reads naturally in supervisor configs.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP tool server on stdio.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := loadedCfg
	logger := observability.GetLogger().Named("serve")

	var sink schemas.ArtifactSink = artifacts.NopSink{}
	var dirSink *artifacts.DirSink
	if cfg.Artifacts.Enabled {
		ds, err := artifacts.NewDirSink(cfg.Artifacts.Dir, logger)
		if err != nil {
			return fmt.Errorf("creating artifact sink: %w", err)
		}
		sink = ds
		dirSink = ds
	}

	srv := toolserver.NewServer(cfg, sink, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if dirSink != nil && cfg.Artifacts.HTTPAddr != "" {
		viewer := artifacts.NewServer(cfg.Artifacts.HTTPAddr, dirSink.Dir(), logger)
		g.Go(func() error {
			return viewer.Start(gctx)
		})
		logger.Info("Artifact viewer listening", zap.String("addr", cfg.Artifacts.HTTPAddr))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
