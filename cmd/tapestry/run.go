package main

import (
	"github.com/aretw0/tapestry/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to a backend and stream its log panel",
	Long: `Connects to Streamtools, mirrors its graph and prints the log panel until
interrupted. Connection losses are reported and retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.RunLive(ctx, options(cmd), jsonMode, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("json", false, "Write log entries as NDJSON")

	// 'run' is the default when no command is provided.
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().Bool("json", false, "Write log entries as NDJSON")
}
