package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is a recurring expected expense.
type Bill struct {
	ID int64

	Name   string
	Active bool

	AmountMin    decimal.Decimal
	AmountMax    decimal.Decimal
	CurrencyCode string

	// NextDueDate is the next date the bill falls due.
	NextDueDate time.Time
	RepeatFreq  string

	// PaidDates are the payments the server reports inside the bill record.
	PaidDates []BillPayment
}

// BillPayment records that a bill was paid on a given date.
type BillPayment struct {
	ID     int64
	BillID int64
	Date   time.Time
}
