package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// BillRepository is the bill slice of the local cache.
type BillRepository interface {
	Upsert(ctx context.Context, b models.Bill) error
	DeleteAll(ctx context.Context) error
	DeleteByID(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (models.Bill, error)

	// DueOn returns active bills due on the given day (yyyy-mm-dd).
	DueOn(ctx context.Context, day string) ([]models.Bill, error)
}

type SQLiteBillRepository struct {
	db dbx.DBTX
}

func NewSQLiteBillRepository(db dbx.DBTX) *SQLiteBillRepository {
	return &SQLiteBillRepository{db: db}
}

func (r *SQLiteBillRepository) Upsert(ctx context.Context, b models.Bill) error {
	query := `INSERT INTO bills (id, name, active, amount_min, amount_max, currency_code, next_due_date, repeat_freq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			active = excluded.active,
			amount_min = excluded.amount_min,
			amount_max = excluded.amount_max,
			currency_code = excluded.currency_code,
			next_due_date = excluded.next_due_date,
			repeat_freq = excluded.repeat_freq
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Active, b.AmountMin.String(), b.AmountMax.String(),
		b.CurrencyCode, dayString(b.NextDueDate), b.RepeatFreq)
	if err != nil {
		return fmt.Errorf("failed to upsert bill: %w", err)
	}
	return nil
}

func (r *SQLiteBillRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bills`); err != nil {
		return fmt.Errorf("failed to delete bills: %w", err)
	}
	return nil
}

func (r *SQLiteBillRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete bill %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteBillRepository) GetByID(ctx context.Context, id int64) (models.Bill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, active, amount_min, amount_max, currency_code, next_due_date, repeat_freq
		 FROM bills WHERE id = ?`, id)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bill{}, ErrNotFound
	}
	return b, err
}

func (r *SQLiteBillRepository) DueOn(ctx context.Context, day string) ([]models.Bill, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, active, amount_min, amount_max, currency_code, next_due_date, repeat_freq
		 FROM bills WHERE active = 1 AND next_due_date = ?`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query due bills: %w", err)
	}
	defer rows.Close()

	var result []models.Bill
	for rows.Next() {
		b, err := scanBill(rows)
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

func scanBill(row rowScanner) (models.Bill, error) {
	var (
		b        models.Bill
		min, max string
		due      string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Active, &min, &max, &b.CurrencyCode, &due, &b.RepeatFreq); err != nil {
		return models.Bill{}, err
	}
	var err error
	if b.AmountMin, err = decimal.NewFromString(min); err != nil {
		return models.Bill{}, fmt.Errorf("stored amount %q: %w", min, err)
	}
	if b.AmountMax, err = decimal.NewFromString(max); err != nil {
		return models.Bill{}, fmt.Errorf("stored amount %q: %w", max, err)
	}
	if b.NextDueDate, err = parseDay(due); err != nil {
		return models.Bill{}, err
	}
	return b, nil
}
