// Package api implements the remote boundary of the client: a typed REST
// client for the ledger server. All failures surface as *Error with a closed
// Kind enumeration; nothing transport-specific leaks to callers.
package api

import (
	"context"
	"time"

	"github.com/hisname/photuris/internal/models"
)

// DeleteStatus is the outcome of a server-side delete.
type DeleteStatus int

const (
	// DeleteSucceeded means the server confirmed the delete (204).
	DeleteSucceeded DeleteStatus = iota + 1
	// DeleteUnauthorised means the server rejected the caller (401).
	DeleteUnauthorised
	// DeleteFailed is any other outcome, including transport failures.
	DeleteFailed
)

// Page is one page of a paginated listing.
type Page[T any] struct {
	Records     []T
	CurrentPage int
	TotalPages  int
}

// TokenGrant is the result of an OAuth code exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Client is the surface of the remote server the rest of the application
// consumes.
type Client interface {
	// ListBudgets fetches one page of budget limits.
	ListBudgets(ctx context.Context, page int) (Page[models.Budget], error)

	// ListBills fetches one page of bills.
	ListBills(ctx context.Context, page int) (Page[models.Bill], error)

	// GetBill fetches a single bill by id.
	GetBill(ctx context.Context, id int64) (models.Bill, error)

	// DeleteBill asks the server to delete a bill. The returned status is
	// always valid, also when err is non-nil.
	DeleteBill(ctx context.Context, id int64) (DeleteStatus, error)

	// ListAttachments fetches the attachment metadata for a bill.
	ListAttachments(ctx context.Context, billID int64) ([]models.Attachment, error)

	// Download streams uri into the file at dst.
	Download(ctx context.Context, uri string, dst string) error

	// CurrentUser probes the authenticated user endpoint and returns the
	// account email. Used to validate personal access tokens.
	CurrentUser(ctx context.Context) (string, error)

	// ExchangeCode trades an OAuth authorization code for tokens.
	ExchangeCode(ctx context.Context, code, clientID, clientSecret, redirectURI string) (TokenGrant, error)

	// Close releases idle connections. The client must not be used after.
	Close() error
}
