// Package store is the local durable cache: SQLite repositories for the
// entity records plus the account registry. Schemas are managed with goose
// migrations embedded in the binary.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/hisname/photuris/internal/store/migrations"
)

// Cache bundles the repositories of one per-account entity cache database.
type Cache struct {
	DB *sql.DB

	Budgets      BudgetRepository
	Bills        BillRepository
	BillPayments BillPaymentRepository
	Transactions TransactionRepository
	Attachments  AttachmentRepository
}

// OpenCache opens (creating if needed) the entity cache at dsn and brings its
// schema up to date.
func OpenCache(ctx context.Context, dsn string) (*Cache, error) {
	db, err := openMigrated(ctx, dsn, "cache")
	if err != nil {
		return nil, err
	}
	return &Cache{
		DB:           db,
		Budgets:      NewSQLiteBudgetRepository(db),
		Bills:        NewSQLiteBillRepository(db),
		BillPayments: NewSQLiteBillPaymentRepository(db),
		Transactions: NewSQLiteTransactionRepository(db),
		Attachments:  NewSQLiteAttachmentRepository(db),
	}, nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.DB.Close()
}

// Registry is the shared account registry database.
type Registry struct {
	DB       *sql.DB
	Accounts AccountRepository
}

// OpenRegistry opens the account registry at dsn and migrates its schema.
func OpenRegistry(ctx context.Context, dsn string) (*Registry, error) {
	db, err := openMigrated(ctx, dsn, "registry")
	if err != nil {
		return nil, err
	}
	return &Registry{DB: db, Accounts: NewSQLiteAccountRepository(db)}, nil
}

// Close closes the underlying database handle.
func (r *Registry) Close() error {
	return r.DB.Close()
}

func openMigrated(ctx context.Context, dsn, migrationDir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	sub, err := fs.Sub(migrations.Migrations, migrationDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s schema: %w", migrationDir, err)
	}
	return db, nil
}
