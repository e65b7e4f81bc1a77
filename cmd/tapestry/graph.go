package main

import (
	"time"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the live graph",
	Long: `Attaches to Streamtools, waits for the initial state and outputs the graph
as a Mermaid diagram (graph TD), JSON, or a markdown summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var export cli.ExportOptions
		export.Format, _ = cmd.Flags().GetString("format")
		export.Quiet, _ = cmd.Flags().GetDuration("settle")
		export.Timeout, _ = cmd.Flags().GetDuration("timeout")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.ExportGraph(ctx, options(cmd), export, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringP("format", "f", cli.FormatMermaid, "Output format: mermaid, json or summary")
	graphCmd.Flags().Duration("settle", 200*time.Millisecond, "Quiet period that marks the end of the initial state")
	graphCmd.Flags().Duration("timeout", 10*time.Second, "Give up after this long")
}
