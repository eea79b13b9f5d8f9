// Package migration moves a legacy single-account installation to the
// multi-account, hash-namespaced storage layout. Every step is guarded by an
// existence check, so a re-run after success is a no-op and a re-run after a
// partial failure resumes at the first step still holding legacy artifacts.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hisname/photuris/internal/credentials"
	"github.com/hisname/photuris/internal/filex"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/models"
	"github.com/hisname/photuris/internal/prefs"
	"github.com/hisname/photuris/internal/store"
)

// Migrator performs the one-shot storage migration.
type Migrator struct {
	layout   filex.Layout
	creds    credentials.Store
	accounts store.AccountRepository
	log      logging.Logger

	// closeHandles releases any open handle on legacy storage (cache
	// database, API client) before files are moved. May be nil.
	closeHandles func() error

	// newHash generates the per-run account identifier. Seam for tests.
	newHash func() string
}

func New(layout filex.Layout, creds credentials.Store, accounts store.AccountRepository, closeHandles func() error, log logging.Logger) *Migrator {
	return &Migrator{
		layout:       layout,
		creds:        creds,
		accounts:     accounts,
		closeHandles: closeHandles,
		log:          log,
		newHash:      uuid.NewString,
	}
}

// Migrate runs the migration. The account identifier is generated exactly
// once and shared by every step, so the renamed database, preference file,
// CA file and credential bundle all land under the same account hash. A step
// that finds its legacy artifact but fails to move it aborts the remaining
// steps rather than leave mixed legacy/new state.
func (m *Migrator) Migrate(ctx context.Context) error {
	hash := m.newHash()

	if err := m.migrateDatabase(ctx, hash); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := m.migrateCredentials(ctx, hash); err != nil {
		return fmt.Errorf("migrate credentials: %w", err)
	}
	if err := m.migratePreferences(ctx, hash); err != nil {
		return fmt.Errorf("migrate preferences: %w", err)
	}
	if err := m.migrateCAFile(ctx, hash); err != nil {
		return fmt.Errorf("migrate ca file: %w", err)
	}
	return nil
}

// migrateDatabase renames the legacy cache database to the namespaced path.
func (m *Migrator) migrateDatabase(ctx context.Context, hash string) error {
	legacy := m.layout.LegacyDatabase()
	if !exists(legacy) {
		return nil
	}

	if m.closeHandles != nil {
		if err := m.closeHandles(); err != nil {
			return fmt.Errorf("close open handles: %w", err)
		}
	}
	target := m.layout.AccountDatabase(hash)
	if err := os.Rename(legacy, target); err != nil {
		return err
	}
	// Post-rename cleanup of the original path: a no-op when the rename
	// already moved it.
	if err := removeIfExists(legacy); err != nil {
		return err
	}
	m.log.Info(ctx, "legacy database migrated", "target", target)
	return nil
}

// migrateCredentials copies the legacy credential bundle under the new
// namespaced key and records the account in the registry.
func (m *Migrator) migrateCredentials(ctx context.Context, hash string) error {
	bundle, err := m.creds.Read(credentials.LegacyAccount)
	if errors.Is(err, credentials.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if bundle.Email == "" {
		return nil
	}

	// The base URL lives in the legacy preference file, which step 3 has not
	// renamed yet.
	legacyPrefs, err := prefs.Load(m.layout.LegacyPrefs())
	if err != nil {
		return err
	}

	if err := m.creds.Destroy(credentials.LegacyAccount); err != nil {
		return err
	}
	if err := m.creds.Write(hash, bundle); err != nil {
		return err
	}
	if _, err := m.accounts.Insert(ctx, models.Account{
		UniqueHash: hash,
		Email:      bundle.Email,
		Host:       legacyPrefs.BaseURL,
		Active:     true,
	}); err != nil {
		return err
	}
	m.log.Info(ctx, "legacy account migrated", "account", hash)
	return nil
}

// migratePreferences renames every legacy-named preference file to the
// namespaced scheme.
func (m *Migrator) migratePreferences(ctx context.Context, hash string) error {
	entries, err := os.ReadDir(m.layout.PrefsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !prefs.IsLegacyFile(entry.Name()) {
			continue
		}
		if err := os.Rename(filepath.Join(m.layout.PrefsDir(), entry.Name()), m.layout.AccountPrefs(hash)); err != nil {
			return err
		}
		m.log.Info(ctx, "legacy preferences migrated", "file", entry.Name())
	}
	return nil
}

// migrateCAFile renames the legacy custom certificate-authority file.
func (m *Migrator) migrateCAFile(ctx context.Context, hash string) error {
	legacy := m.layout.LegacyCAFile()
	if !exists(legacy) {
		return nil
	}
	if err := os.Rename(legacy, m.layout.AccountCAFile(hash)); err != nil {
		return err
	}
	if err := removeIfExists(legacy); err != nil {
		return err
	}
	m.log.Info(ctx, "legacy ca file migrated")
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
