package config

import (
	"flag"
	"os"
	"time"

	"github.com/hisname/photuris/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data directory holding databases, preferences and files
//	-l string   log level (debug, info, warn, error)
//	-t int      remote request timeout in seconds
//	-w int      background worker count
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-l", "-t", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	timeout := fs.Int("t", int(cfg.HTTPTimeout.Seconds()), "remote request timeout (in seconds)")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "background worker count")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.HTTPTimeout = time.Duration(*timeout) * time.Second
}
