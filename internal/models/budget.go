// Package models defines the client-side entity records cached in the local
// database. Records are owned by the server: a remote-assigned integer ID
// identifies each one, and every successful refresh overwrites them wholesale.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a budget limit for a date range in a single currency.
type Budget struct {
	// ID is assigned by the server.
	ID int64

	Name   string
	Active bool

	// Amount is the budgeted amount for [Start, End]. Monetary values are
	// arbitrary precision, never floats.
	Amount       decimal.Decimal
	CurrencyCode string

	Start time.Time
	End   time.Time
}
