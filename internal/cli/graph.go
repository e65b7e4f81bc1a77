package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	presentation "github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/internal/presentation/tui"
)

// Graph export formats.
const (
	FormatMermaid = "mermaid"
	FormatJSON    = "json"
	FormatSummary = "summary"
)

// ExportOptions control a one-shot graph export.
type ExportOptions struct {
	Format string
	// Quiet is how long the state channel must stay silent before the
	// mirrored graph is considered complete.
	Quiet time.Duration
	// Timeout bounds the whole export.
	Timeout time.Duration
}

// ExportGraph attaches to the backend, waits for the initial state burst and
// writes the mirrored graph to out.
func ExportGraph(ctx context.Context, opts Options, export ExportOptions, out io.Writer) error {
	cfg, err := Resolve(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, opts.LogJSON)

	switch export.Format {
	case "":
		export.Format = FormatMermaid
	case FormatMermaid, FormatJSON, FormatSummary:
	default:
		return fmt.Errorf("unknown format %q (supported: mermaid, json, summary)", export.Format)
	}
	if export.Timeout <= 0 {
		export.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, export.Timeout)
	defer cancel()

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

	if err := ed.WaitSettled(ctx, export.Quiet); err != nil {
		return fmt.Errorf("graph did not settle: %w", err)
	}
	snap, err := ed.Snapshot(ctx)
	if err != nil {
		return err
	}

	switch export.Format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatSummary:
		md := presentation.GenerateSummary(ed.Info().Version, snap.Nodes, snap.Edges)
		if f, ok := out.(*os.File); ok && tui.IsInteractive(f) {
			render, err := tui.NewRenderer(tui.Width(f, 100))
			if err != nil {
				return err
			}
			if md, err = render(md); err != nil {
				return err
			}
		}
		_, err = io.WriteString(out, md)
		return err
	default:
		_, err = io.WriteString(out, presentation.GenerateMermaid(snap.Nodes, snap.Edges, nil))
		return err
	}
}
