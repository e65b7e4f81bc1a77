package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tapestry"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tapestry",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tapestry version %s\n", strings.TrimSpace(tapestry.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
