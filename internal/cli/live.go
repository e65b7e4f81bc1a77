package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/aretw0/tapestry/pkg/domain"
)

// RunLive attaches to the backend and streams the log panel to out until
// ctx is cancelled. In JSON mode every entry is written as one NDJSON line.
func RunLive(ctx context.Context, opts Options, jsonMode bool, out io.Writer) error {
	cfg, err := Resolve(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, opts.LogJSON)

	ed, closeSink, err := newEditor(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeSink()

	interactive := !jsonMode && isTerminal(out)
	if interactive {
		tui.PrintBanner(out, cfg.Backend, ed.Info().Version)
	}

	var mu sync.Mutex
	enc := json.NewEncoder(out)
	ed.OnLog(func(e domain.LogEntry) {
		mu.Lock()
		defer mu.Unlock()
		if jsonMode {
			_ = enc.Encode(e)
			return
		}
		_, _ = io.WriteString(out, formatEntry(out, e)+"\n")
	})

	err = ed.Run(ctx)

	if !jsonMode {
		var sig os.Signal
		if sc, ok := ctx.(*SignalContext); ok {
			sig = sc.Signal()
		}
		switch {
		case sig == os.Interrupt:
			printSystemMessage(out, "[CTRL+C] Detached from %s.", cfg.Backend)
		case sig != nil:
			printSystemMessage(out, "Terminated (%v).", sig)
		default:
			printSystemMessage(out, "Detached from %s.", cfg.Backend)
		}
	}
	return err
}
