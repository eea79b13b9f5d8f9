package migration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hisname/photuris/internal/credentials"
	"github.com/hisname/photuris/internal/filex"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/prefs"
	"github.com/hisname/photuris/internal/store"
)

const testHash = "0f5a9d2c-aaaa-bbbb-cccc-111122223333"

type fixture struct {
	layout   filex.Layout
	creds    credentials.Store
	registry *store.Registry
	migrator *Migrator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	layout := filex.Layout{DataDir: t.TempDir()}
	require.NoError(t, layout.Ensure())

	creds, err := credentials.NewFileStore(layout.CredentialsDir())
	require.NoError(t, err)

	registry, err := store.OpenRegistry(ctx, layout.RegistryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { registry.DB.Close() })

	m := New(layout, creds, registry.Accounts, nil, logging.NewNopLogger())
	m.newHash = func() string { return testHash }

	return &fixture{layout: layout, creds: creds, registry: registry, migrator: m}
}

func (f *fixture) seedLegacy(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.layout.LegacyDatabase(), []byte("legacy-cache"), 0o600))
	require.NoError(t, f.creds.Write(credentials.LegacyAccount, credentials.Bundle{
		Email:       "user@example.com",
		AccessToken: "legacy-token",
		AuthMethod:  credentials.AuthMethodPat,
		TokenExpiry: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, prefs.Save(f.layout.LegacyPrefs(), prefs.Prefs{
		BaseURL:         "https://firefly.example.com",
		DefaultCurrency: "EUR",
	}))
	require.NoError(t, os.WriteFile(f.layout.LegacyCAFile(), []byte("-----BEGIN CERTIFICATE-----"), 0o600))
}

func TestMigrate_FullLegacyInstall(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedLegacy(t)

	require.NoError(t, f.migrator.Migrate(ctx))

	assert.NoFileExists(t, f.layout.LegacyDatabase())
	assert.FileExists(t, f.layout.AccountDatabase(testHash))

	active, err := f.registry.Accounts.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, testHash, active.UniqueHash)
	assert.Equal(t, "user@example.com", active.Email)
	assert.Equal(t, "https://firefly.example.com", active.Host)
	assert.True(t, active.Active)

	_, err = f.creds.Read(credentials.LegacyAccount)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
	bundle, err := f.creds.Read(testHash)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", bundle.Email)
	assert.Equal(t, "legacy-token", bundle.AccessToken)
	assert.Equal(t, credentials.AuthMethodPat, bundle.AuthMethod)

	assert.NoFileExists(t, f.layout.LegacyPrefs())
	migrated, err := prefs.Load(f.layout.AccountPrefs(testHash))
	require.NoError(t, err)
	assert.Equal(t, "https://firefly.example.com", migrated.BaseURL)
	assert.Equal(t, "EUR", migrated.DefaultCurrency)

	assert.NoFileExists(t, f.layout.LegacyCAFile())
	assert.FileExists(t, f.layout.AccountCAFile(testHash))
}

func TestMigrate_SecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedLegacy(t)

	require.NoError(t, f.migrator.Migrate(ctx))

	// A second run finds no legacy artifacts and must not duplicate the
	// registry row or touch the migrated files.
	f.migrator.newHash = func() string { return "another-hash" }
	require.NoError(t, f.migrator.Migrate(ctx))

	accounts, err := f.registry.Accounts.All(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, testHash, accounts[0].UniqueHash)

	assert.FileExists(t, f.layout.AccountDatabase(testHash))
	assert.NoFileExists(t, f.layout.AccountDatabase("another-hash"))
}

func TestMigrate_NothingToMigrate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	require.NoError(t, f.migrator.Migrate(ctx))

	accounts, err := f.registry.Accounts.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestMigrate_BlankEmailSkipsAccountStep(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	require.NoError(t, f.creds.Write(credentials.LegacyAccount, credentials.Bundle{
		AccessToken: "token-without-identity",
	}))

	require.NoError(t, f.migrator.Migrate(ctx))

	accounts, err := f.registry.Accounts.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	// The unowned bundle stays under the legacy key.
	_, err = f.creds.Read(credentials.LegacyAccount)
	assert.NoError(t, err)
}

func TestMigrate_HandleCloseFailureAbortsRemainingSteps(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedLegacy(t)

	boom := errors.New("cache busy")
	f.migrator.closeHandles = func() error { return boom }

	err := f.migrator.Migrate(ctx)
	require.ErrorIs(t, err, boom)

	// Nothing after the failing step ran.
	assert.FileExists(t, f.layout.LegacyDatabase())
	_, err = f.creds.Read(credentials.LegacyAccount)
	assert.NoError(t, err)
	assert.FileExists(t, f.layout.LegacyPrefs())
	assert.FileExists(t, f.layout.LegacyCAFile())

	accounts, err := f.registry.Accounts.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestMigrate_ResumesAfterPartialRun(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedLegacy(t)

	// Simulate a run that migrated the database and then died: the legacy
	// database is gone but credentials, prefs and CA file are untouched.
	require.NoError(t, os.Rename(f.layout.LegacyDatabase(), f.layout.AccountDatabase(testHash)))

	require.NoError(t, f.migrator.Migrate(ctx))

	active, err := f.registry.Accounts.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", active.Email)
	assert.NoFileExists(t, f.layout.LegacyPrefs())
	assert.NoFileExists(t, f.layout.LegacyCAFile())
}
