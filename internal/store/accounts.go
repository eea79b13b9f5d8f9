package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/models"
)

// AccountRepository is the registry of known accounts. Invariant: at most one
// row has active=1. Mutations that could break the invariant run inside a
// transaction.
type AccountRepository interface {
	// Insert stores a new account. An active account deactivates every other
	// row first.
	Insert(ctx context.Context, a models.Account) (int64, error)

	All(ctx context.Context) ([]models.Account, error)

	// Active returns the active account, or ErrNotFound when the registry is
	// empty or nothing is active.
	Active(ctx context.Context) (models.Account, error)

	ByHash(ctx context.Context, hash string) (models.Account, error)

	// SetActive marks the account matching email+host active and every other
	// row inactive.
	SetActive(ctx context.Context, email, host string) error

	// Delete removes an account. When the deleted account was active, the
	// most recently created remaining account is promoted; an empty registry
	// is left with no active identity.
	Delete(ctx context.Context, id int64) error
}

// SQLiteAccountRepository implements AccountRepository. It holds *sql.DB
// rather than DBTX because several operations need their own transaction.
type SQLiteAccountRepository struct {
	db *sql.DB
}

func NewSQLiteAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

const accountColumns = `id, unique_hash, email, host, active, created_at`

func (r *SQLiteAccountRepository) Insert(ctx context.Context, a models.Account) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if a.Active {
			if _, err := tx.ExecContext(ctx, `UPDATE accounts SET active = 0`); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (unique_hash, email, host, active, created_at) VALUES (?, ?, ?, ?, ?)`,
			a.UniqueHash, a.Email, a.Host, a.Active, a.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}
	return id, nil
}

func (r *SQLiteAccountRepository) All(ctx context.Context) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var result []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteAccountRepository) Active(ctx context.Context) (models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE active = 1 LIMIT 1`)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	return a, err
}

func (r *SQLiteAccountRepository) ByHash(ctx context.Context, hash string) (models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE unique_hash = ?`, hash)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	return a, err
}

func (r *SQLiteAccountRepository) SetActive(ctx context.Context, email, host string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET active = 0`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET active = 1 WHERE email = ? AND host = ?`, email, host)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set active account: %w", err)
	}
	return nil
}

func (r *SQLiteAccountRepository) Delete(ctx context.Context, id int64) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var active bool
		err := tx.QueryRowContext(ctx, `SELECT active FROM accounts WHERE id = ?`, id).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return err
		}
		if !active {
			return nil
		}
		// Promote the most recently created remaining account, if any.
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET active = 1 WHERE id =
			   (SELECT id FROM accounts ORDER BY created_at DESC, id DESC LIMIT 1)`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		a       models.Account
		created string
	)
	if err := row.Scan(&a.ID, &a.UniqueHash, &a.Email, &a.Host, &a.Active, &created); err != nil {
		return models.Account{}, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return models.Account{}, fmt.Errorf("stored created_at %q: %w", created, err)
	}
	a.CreatedAt = t.UTC()
	return a, nil
}
