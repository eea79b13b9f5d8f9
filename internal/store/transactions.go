package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/models"
)

// TransactionRepository is the transaction slice of the local cache.
type TransactionRepository interface {
	Upsert(ctx context.Context, t models.Transaction) error
	DeleteAll(ctx context.Context) error

	// SpentTotal sums the amounts of transactions dated within [start, end]
	// in the given currency. Zero when nothing matches.
	SpentTotal(ctx context.Context, currencyCode, start, end string) (decimal.Decimal, error)
}

type SQLiteTransactionRepository struct {
	db dbx.DBTX
}

func NewSQLiteTransactionRepository(db dbx.DBTX) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{db: db}
}

func (r *SQLiteTransactionRepository) Upsert(ctx context.Context, t models.Transaction) error {
	query := `INSERT INTO transactions (id, description, amount, currency_code, tx_date, source_name, destination_name, budget_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET description = excluded.description,
			amount = excluded.amount,
			currency_code = excluded.currency_code,
			tx_date = excluded.tx_date,
			source_name = excluded.source_name,
			destination_name = excluded.destination_name,
			budget_name = excluded.budget_name
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Description, t.Amount.String(), t.CurrencyCode, dayString(t.Date),
		t.SourceName, t.DestinationName, t.BudgetName)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteTransactionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

func (r *SQLiteTransactionRepository) SpentTotal(ctx context.Context, currencyCode, start, end string) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM transactions WHERE currency_code = ? AND tx_date >= ? AND tx_date <= ?`,
		currencyCode, start, end)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("stored amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
