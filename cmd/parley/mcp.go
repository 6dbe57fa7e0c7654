package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/parley/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes dialogue sessions as MCP tools so that AI agents can play graphs.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP, enabled with --sse <addr>.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		svc, err := newServices(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer svc.close()

		srv := mcp.NewServer(svc.manager, svc.engine.Loader(), mcp.WithLogger(logger))

		sseAddr, _ := cmd.Flags().GetString("sse")
		if sseAddr == "" {
			logger.Info("starting parley MCP server (stdio)", "graphs", cfg.Graphs)
			return srv.ServeStdio()
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting parley MCP server (SSE)", "addr", sseAddr, "graphs", cfg.Graphs)
		if err := srv.ServeSSE(ctx, sseAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("MCP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("graphs", "", "Graph file or directory to serve (default .)")
	mcpCmd.Flags().String("sse", "", "Serve over SSE on this address instead of stdio")
}
