package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/hisname/photuris/internal/flagx"
	"github.com/hisname/photuris/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "30s" or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	DataDir     string         `json:"data_dir"`
	LogLevel    string         `json:"log_level"`
	HTTPTimeout timex.Duration `json:"http_timeout"`
	Workers     int            `json:"workers"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies known fields into the provided Config.
//   - Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.DataDir = jc.DataDir
	cfg.LogLevel = jc.LogLevel
	cfg.HTTPTimeout = time.Duration(jc.HTTPTimeout.Duration)
	cfg.Workers = jc.Workers
}
