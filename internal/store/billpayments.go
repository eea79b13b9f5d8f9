package store

import (
	"context"
	"fmt"

	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/models"
)

// BillPaymentRepository tracks which bills were paid on which dates.
type BillPaymentRepository interface {
	Upsert(ctx context.Context, p models.BillPayment) error
	DeleteAll(ctx context.Context) error

	// PaidBillIDs returns the distinct bill ids paid within [start, end].
	PaidBillIDs(ctx context.Context, start, end string) ([]int64, error)
}

type SQLiteBillPaymentRepository struct {
	db dbx.DBTX
}

func NewSQLiteBillPaymentRepository(db dbx.DBTX) *SQLiteBillPaymentRepository {
	return &SQLiteBillPaymentRepository{db: db}
}

func (r *SQLiteBillPaymentRepository) Upsert(ctx context.Context, p models.BillPayment) error {
	query := `INSERT INTO bill_payments (id, bill_id, paid_date)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET bill_id = excluded.bill_id, paid_date = excluded.paid_date
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.BillID, dayString(p.Date)); err != nil {
		return fmt.Errorf("failed to upsert bill payment: %w", err)
	}
	return nil
}

func (r *SQLiteBillPaymentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bill_payments`); err != nil {
		return fmt.Errorf("failed to delete bill payments: %w", err)
	}
	return nil
}

func (r *SQLiteBillPaymentRepository) PaidBillIDs(ctx context.Context, start, end string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT bill_id FROM bill_payments WHERE paid_date >= ? AND paid_date <= ?`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill payments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
