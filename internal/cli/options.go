package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/tapestry/internal/config"
	"github.com/aretw0/tapestry/internal/logging"
)

// Options are the flags shared by every command. Zero values leave the
// configuration file (or its defaults) untouched.
type Options struct {
	ConfigPath    string
	Backend       string
	ReconnectWait time.Duration
	LogLimit      int
	Listen        string
	RedisAddr     string
	Redact        []string
	Debug         bool
	LogJSON       bool
}

// Resolve loads the configuration file and applies the flags on top of it.
func Resolve(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}

	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.ReconnectWait > 0 {
		cfg.ReconnectWait = config.Duration(opts.ReconnectWait)
	}
	if opts.LogLimit > 0 {
		cfg.LogLimit = opts.LogLimit
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.RedisAddr != "" {
		cfg.Redis.Addr = opts.RedisAddr
	}
	cfg.Redact = append(cfg.Redact, opts.Redact...)
	if opts.Debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createLogger configures the application logger.
// It writes to Stderr, to keep Stdout for graphs, log lines and MCP traffic.
func createLogger(cfg config.Config, jsonFormat bool) *slog.Logger {
	format := logging.FormatText
	if jsonFormat {
		format = logging.FormatJSON
	}
	return logging.NewWriter(os.Stderr, logging.Level(cfg.Debug), format)
}
