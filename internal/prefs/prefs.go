// Package prefs reads and writes the per-account preference files. File
// naming carries the account namespacing: legacy installs used a single
// app-prefixed file, migrated installs use one file per account hash.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	legacyPrefix = "photuris"
	legacySuffix = "preferences.json"
)

// Prefs are the non-secret settings of one account.
type Prefs struct {
	BaseURL         string `json:"base_url"`
	DefaultCurrency string `json:"default_currency"`
}

// FileName returns the preference file name for an account hash.
func FileName(uniqueHash string) string {
	return uniqueHash + "-user-preferences.json"
}

// LegacyFileName is the single-account preference file name that predates
// account namespacing.
func LegacyFileName() string {
	return legacyPrefix + "-" + legacySuffix
}

// IsLegacyFile reports whether name follows the legacy naming convention.
func IsLegacyFile(name string) bool {
	return strings.HasPrefix(name, legacyPrefix) && strings.HasSuffix(name, legacySuffix)
}

// Load reads the preference file at path. A missing file yields zero Prefs.
func Load(path string) (Prefs, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Prefs{}, nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("read preferences: %w", err)
	}
	var p Prefs
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prefs{}, fmt.Errorf("decode preferences %s: %w", path, err)
	}
	return p, nil
}

// Save writes p to path, creating parent directories as needed.
func Save(path string, p Prefs) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
