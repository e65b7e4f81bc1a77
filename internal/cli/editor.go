package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/config"
	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/adapters/redis"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/persistence/middleware"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// newEditor bootstraps an editor from the resolved configuration. The
// returned close function releases the shared log panel, if any.
func newEditor(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*tapestry.Editor, func() error, error) {
	opts := []tapestry.Option{
		tapestry.WithLogger(logger),
		tapestry.WithReconnectWait(cfg.ReconnectWait.Std()),
		tapestry.WithLogLimit(cfg.LogLimit),
		tapestry.WithRateRefresh(cfg.RateRefresh.Std()),
		tapestry.WithFrameInterval(cfg.FrameInterval.Std()),
	}
	if reg != nil {
		opts = append(opts, tapestry.WithMetrics(observability.NewMetrics(reg)))
	}

	closer := func() error { return nil }
	var sink ports.LogSink = memory.NewLogSink(cfg.LogLimit)
	if cfg.Redis.Addr != "" {
		shared := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithKey(cfg.Redis.Key),
			redis.WithLimit(cfg.LogLimit),
		)
		sink = shared
		closer = shared.Close
		logger.Info("log panel shared through redis", "addr", cfg.Redis.Addr, "key", cfg.Redis.Key)
	}
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		sink = middleware.Chain(sink, mw)
	}
	opts = append(opts, tapestry.WithLogSink(sink))

	ed, err := tapestry.New(ctx, cfg.Backend, opts...)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	logger.Debug("editor bootstrapped", "backend", cfg.Backend, "version", ed.Info().Version, "types", len(ed.Library()))
	return ed, closer, nil
}
