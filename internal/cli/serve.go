package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpadapter "github.com/aretw0/tapestry/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the editor headless and exposes it over HTTP until ctx is cancelled.
func Serve(ctx context.Context, opts Options) error {
	cfg, err := Resolve(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, opts.LogJSON)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ed, closeSink, err := newEditor(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer closeSink()

	handler, err := httpadapter.NewHandler(ctx, ed,
		httpadapter.WithLogger(logger),
		httpadapter.WithGatherer(reg),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ed.Run(gctx) })
	g.Go(func() error {
		logger.Info("Starting Tapestry Server", "address", srv.Addr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		logger.Info("Tapestry Server stopped gracefully")
		return nil
	})

	return g.Wait()
}
