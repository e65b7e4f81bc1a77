package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the headless editor HTTP server",
	Long: `Attaches to Streamtools and exposes the mirrored graph, its scene and the
editing gestures as a JSON API, with render diffs streamed over SSE and
metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd)
		opts.Listen, _ = cmd.Flags().GetString("listen")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return cli.Serve(ctx, opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (default from config: :8080)")
}
