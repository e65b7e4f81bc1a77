package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/tapestry/pkg/adapters/mcp"
)

// ServeMCP runs the editor and exposes it as an MCP server over stdio or SSE.
func ServeMCP(ctx context.Context, opts Options, transport, addr string) error {
	cfg, err := Resolve(opts)
	if err != nil {
		return err
	}
	if transport != "stdio" && transport != "sse" {
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
	logger := createLogger(cfg, opts.LogJSON)

	ed, closeSink, err := newEditor(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeSink()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- ed.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	srv := mcp.NewServer(ed, logger)
	switch transport {
	case "sse":
		if addr == "" {
			addr = cfg.Listen
		}
		logger.Info("Starting Tapestry MCP Server (SSE)", "address", addr)
		if err := srv.ServeSSE(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		logger.Info("Starting Tapestry MCP Server (Stdio)")
		return srv.ServeStdio()
	}
}
