package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/models"
)

// BudgetRepository is the budget slice of the local cache.
type BudgetRepository interface {
	Upsert(ctx context.Context, b models.Budget) error
	DeleteAll(ctx context.Context) error

	// BudgetedTotal sums the amounts of budgets lying inside [start, end]
	// (stored as yyyy-mm-dd) in the given currency. found is false when no
	// budget matched.
	BudgetedTotal(ctx context.Context, start, end, currencyCode string) (total decimal.Decimal, found bool, err error)

	// SearchByName returns budgets whose name starts with prefix.
	SearchByName(ctx context.Context, prefix string) ([]models.Budget, error)
}

// SQLiteBudgetRepository implements BudgetRepository over a DBTX.
type SQLiteBudgetRepository struct {
	db dbx.DBTX
}

func NewSQLiteBudgetRepository(db dbx.DBTX) *SQLiteBudgetRepository {
	return &SQLiteBudgetRepository{db: db}
}

func (r *SQLiteBudgetRepository) Upsert(ctx context.Context, b models.Budget) error {
	query := `INSERT INTO budgets (id, name, active, amount, currency_code, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			active = excluded.active,
			amount = excluded.amount,
			currency_code = excluded.currency_code,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Active, b.Amount.String(), b.CurrencyCode,
		dayString(b.Start), dayString(b.End))
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteBudgetRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM budgets`); err != nil {
		return fmt.Errorf("failed to delete budgets: %w", err)
	}
	return nil
}

// BudgetedTotal sums in Go rather than SQL so amounts never round-trip
// through floating point.
func (r *SQLiteBudgetRepository) BudgetedTotal(ctx context.Context, start, end, currencyCode string) (decimal.Decimal, bool, error) {
	query := `SELECT amount FROM budgets
		WHERE start_date >= ? AND end_date <= ? AND currency_code = ?`
	rows, err := r.db.QueryContext(ctx, query, start, end, currencyCode)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	found := false
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, false, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("stored amount %q: %w", raw, err)
		}
		total = total.Add(amount)
		found = true
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, false, err
	}
	return total, found, nil
}

// SearchByName is a trailing-wildcard prefix match against the cache only.
func (r *SQLiteBudgetRepository) SearchByName(ctx context.Context, prefix string) ([]models.Budget, error) {
	query := `SELECT id, name, active, amount, currency_code, start_date, end_date
		FROM budgets WHERE name LIKE ? ESCAPE '\' ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search budgets: %w", err)
	}
	defer rows.Close()

	var result []models.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanBudget(rows rowScanner) (models.Budget, error) {
	var (
		b          models.Budget
		amount     string
		start, end string
	)
	if err := rows.Scan(&b.ID, &b.Name, &b.Active, &amount, &b.CurrencyCode, &start, &end); err != nil {
		return models.Budget{}, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return models.Budget{}, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	if b.Start, err = parseDay(start); err != nil {
		return models.Budget{}, err
	}
	if b.End, err = parseDay(end); err != nil {
		return models.Budget{}, err
	}
	return b, nil
}
