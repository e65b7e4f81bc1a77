package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "tapestry.yaml"

// Duration is a time.Duration written as "3s", "100ms" in config files.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Redis selects the shared log panel backend. Empty Addr keeps the log panel in memory.
type Redis struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Key      string `yaml:"key" json:"key"`
}

// Config is the editor configuration file.
type Config struct {
	Backend       string   `yaml:"backend" json:"backend"`
	ReconnectWait Duration `yaml:"reconnect_wait" json:"reconnect_wait"`
	LogLimit      int      `yaml:"log_limit" json:"log_limit"`
	RateRefresh   Duration `yaml:"rate_refresh" json:"rate_refresh"`
	FrameInterval Duration `yaml:"frame_interval" json:"frame_interval"`
	Listen        string   `yaml:"listen" json:"listen"`
	Redis         Redis    `yaml:"redis" json:"redis"`
	Redact        []string `yaml:"redact" json:"redact"`
	Debug         bool     `yaml:"debug" json:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:       "http://localhost:7070",
		ReconnectWait: Duration(3 * time.Second),
		LogLimit:      100,
		RateRefresh:   Duration(100 * time.Millisecond),
		FrameInterval: Duration(16 * time.Millisecond),
		Listen:        ":8080",
		Redis:         Redis{Key: "tapestry:log"},
	}
}

// Load reads a configuration file (YAML or JSON) on top of the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects values the editor cannot run with.
func (c Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend address is required")
	}
	if c.ReconnectWait <= 0 {
		return fmt.Errorf("reconnect_wait must be positive")
	}
	if c.LogLimit <= 0 {
		return fmt.Errorf("log_limit must be positive")
	}
	if c.RateRefresh < 0 || c.FrameInterval < 0 {
		return fmt.Errorf("rate_refresh and frame_interval cannot be negative")
	}
	return nil
}
