package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the Photuris CLI.
//
// Fields:
//   - DataDir: root of the on-disk storage layout (databases, prefs, files).
//   - LogLevel: slog level name (debug, info, warn, error).
//   - HTTPTimeout: per-request timeout for the remote API client.
//   - Workers: size of the background task pool.
type Config struct {
	DataDir     string
	LogLevel    string
	HTTPTimeout time.Duration
	Workers     int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".photuris")
	c.LogLevel = "info"
	c.HTTPTimeout = 30 * time.Second
	c.Workers = 4
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
