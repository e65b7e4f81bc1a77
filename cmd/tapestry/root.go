package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/aretw0/tapestry/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tapestry",
	Short: "Tapestry is a live graph editor for Streamtools",
	Long: `Tapestry mirrors the block graph of a running Streamtools backend, keeps it
in sync over the backend's push channels, and sends edits back as requests.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options reads the persistent flags shared by every command.
func options(cmd *cobra.Command) cli.Options {
	flags := cmd.Flags()
	var o cli.Options
	o.ConfigPath, _ = flags.GetString("config")
	o.Backend, _ = flags.GetString("backend")
	o.ReconnectWait, _ = flags.GetDuration("reconnect-wait")
	o.LogLimit, _ = flags.GetInt("log-limit")
	o.RedisAddr, _ = flags.GetString("redis")
	o.Redact, _ = flags.GetStringSlice("redact")
	o.Debug, _ = flags.GetBool("debug")
	o.LogJSON, _ = flags.GetBool("log-json")
	return o
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", config.DefaultPath, "Configuration file (YAML or JSON)")
	pf.StringP("backend", "b", "", "Streamtools address (default from config: http://localhost:7070)")
	pf.Duration("reconnect-wait", 0, "Wait between reconnection attempts (default 3s)")
	pf.Int("log-limit", 0, "Log panel entries to keep (default 100)")
	pf.String("redis", "", "Share the log panel through the Redis server at this address")
	pf.StringSlice("redact", nil, "Mask log entry fields whose key matches these patterns")
	pf.Bool("debug", false, "Enable debug logging")
	pf.Bool("log-json", false, "Write diagnostic logs as JSON")
}
