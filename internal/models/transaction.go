package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger movement.
type Transaction struct {
	ID int64

	Description  string
	Amount       decimal.Decimal
	CurrencyCode string
	Date         time.Time

	SourceName      string
	DestinationName string

	// BudgetName links the transaction to a budget, empty when unbudgeted.
	BudgetName string
}
