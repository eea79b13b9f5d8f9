// Package filex maps the application data directory onto the on-disk storage
// layout. Legacy paths are the single-account layout that predates account
// namespacing; everything else is keyed by the account's unique hash.
package filex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hisname/photuris/internal/prefs"
)

// Layout derives every storage path from one data directory.
type Layout struct {
	DataDir string
}

func (l Layout) DatabasesDir() string   { return filepath.Join(l.DataDir, "databases") }
func (l Layout) PrefsDir() string       { return filepath.Join(l.DataDir, "shared_prefs") }
func (l Layout) FilesDir() string       { return filepath.Join(l.DataDir, "files") }
func (l Layout) CredentialsDir() string { return filepath.Join(l.DataDir, "credentials") }

// LegacyDatabase is the single-account cache database path.
func (l Layout) LegacyDatabase() string {
	return filepath.Join(l.DatabasesDir(), "firefly.db")
}

// AccountDatabase is the namespaced cache database for one account.
func (l Layout) AccountDatabase(uniqueHash string) string {
	return filepath.Join(l.DatabasesDir(), uniqueHash+"-photuris.db")
}

// RegistryDatabase holds the account registry shared by all accounts.
func (l Layout) RegistryDatabase() string {
	return filepath.Join(l.DatabasesDir(), "users.db")
}

// LegacyPrefs is the single-account preference file path.
func (l Layout) LegacyPrefs() string {
	return filepath.Join(l.PrefsDir(), prefs.LegacyFileName())
}

// AccountPrefs is the namespaced preference file for one account.
func (l Layout) AccountPrefs(uniqueHash string) string {
	return filepath.Join(l.PrefsDir(), prefs.FileName(uniqueHash))
}

// LegacyCAFile is the single-account custom certificate-authority file.
func (l Layout) LegacyCAFile() string {
	return filepath.Join(l.FilesDir(), "user_custom.pem")
}

// AccountCAFile is the namespaced certificate-authority file for one account.
func (l Layout) AccountCAFile(uniqueHash string) string {
	return filepath.Join(l.FilesDir(), uniqueHash+".pem")
}

// Ensure creates the layout's directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.DatabasesDir(), l.PrefsDir(), l.FilesDir(), l.CredentialsDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}
