package api

import (
	"bytes"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hisname/photuris/internal/models"
)

// The server wraps every record in {"data": ..., "meta": {...}} and nests the
// attributes one level down. IDs arrive as JSON strings, dates as "2006-01-02".

type wireID int64

func (w *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*w = wireID(n)
	return nil
}

type wireDate struct{ time.Time }

func (w *wireDate) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		w.Time = time.Time{}
		return nil
	}
	// Full timestamps and bare dates both occur.
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			w.Time = t.UTC()
			return nil
		}
	}
	return &time.ParseError{Layout: "2006-01-02", Value: s}
}

type wireMeta struct {
	Pagination struct {
		CurrentPage int `json:"current_page"`
		TotalPages  int `json:"total_pages"`
	} `json:"pagination"`
}

type wireErrorBody struct {
	Message string `json:"message"`
}

type budgetAttributes struct {
	Name         string          `json:"name"`
	Active       bool            `json:"active"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Start        wireDate        `json:"start"`
	End          wireDate        `json:"end"`
}

type budgetEnvelope struct {
	ID         wireID           `json:"id"`
	Attributes budgetAttributes `json:"attributes"`
}

func (e budgetEnvelope) record() models.Budget {
	return models.Budget{
		ID:           int64(e.ID),
		Name:         e.Attributes.Name,
		Active:       e.Attributes.Active,
		Amount:       e.Attributes.Amount,
		CurrencyCode: e.Attributes.CurrencyCode,
		Start:        e.Attributes.Start.Time,
		End:          e.Attributes.End.Time,
	}
}

type billAttributes struct {
	Name         string          `json:"name"`
	Active       bool            `json:"active"`
	AmountMin    decimal.Decimal `json:"amount_min"`
	AmountMax    decimal.Decimal `json:"amount_max"`
	CurrencyCode string          `json:"currency_code"`
	NextDueDate  wireDate        `json:"next_expected_match"`
	RepeatFreq   string          `json:"repeat_freq"`
	PaidDates    []wirePaidDate  `json:"paid_dates"`
}

type wirePaidDate struct {
	JournalID wireID   `json:"transaction_journal_id"`
	Date      wireDate `json:"date"`
}

type billEnvelope struct {
	ID         wireID         `json:"id"`
	Attributes billAttributes `json:"attributes"`
}

func (e billEnvelope) record() models.Bill {
	b := models.Bill{
		ID:           int64(e.ID),
		Name:         e.Attributes.Name,
		Active:       e.Attributes.Active,
		AmountMin:    e.Attributes.AmountMin,
		AmountMax:    e.Attributes.AmountMax,
		CurrencyCode: e.Attributes.CurrencyCode,
		NextDueDate:  e.Attributes.NextDueDate.Time,
		RepeatFreq:   e.Attributes.RepeatFreq,
	}
	for _, p := range e.Attributes.PaidDates {
		b.PaidDates = append(b.PaidDates, models.BillPayment{
			ID:     int64(p.JournalID),
			BillID: b.ID,
			Date:   p.Date.Time,
		})
	}
	return b
}

type attachmentAttributes struct {
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	DownloadURI string `json:"download_uri"`
	OwnerID     wireID `json:"attachable_id"`
}

type attachmentEnvelope struct {
	ID         wireID               `json:"id"`
	Attributes attachmentAttributes `json:"attributes"`
}

func (e attachmentEnvelope) record() models.Attachment {
	return models.Attachment{
		ID:          int64(e.ID),
		OwnerID:     int64(e.Attributes.OwnerID),
		Filename:    e.Attributes.Filename,
		Title:       e.Attributes.Title,
		DownloadURI: e.Attributes.DownloadURI,
	}
}

type listEnvelope[E any] struct {
	Data []E      `json:"data"`
	Meta wireMeta `json:"meta"`
}

type itemEnvelope[E any] struct {
	Data E `json:"data"`
}

type userEnvelope struct {
	Data struct {
		Attributes struct {
			Email string `json:"email"`
		} `json:"attributes"`
	} `json:"data"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
