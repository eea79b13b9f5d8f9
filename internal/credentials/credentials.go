// Package credentials stores per-account secrets: tokens, OAuth client
// credentials, expiry and auth method. Bundles are encrypted at rest and are
// never written to logs.
package credentials

import (
	"errors"
	"time"
)

// Auth method tags.
const (
	AuthMethodPat   = "pat"
	AuthMethodOauth = "oauth"
)

// LegacyAccount is the key of the single-account storage layout that predates
// hash-namespaced accounts. Only the migration routine should use it.
const LegacyAccount = "legacy"

// ErrNotFound is returned when no bundle exists for an account key.
var ErrNotFound = errors.New("credentials not found")

// Bundle holds every secret belonging to one account.
type Bundle struct {
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	TokenExpiry  time.Time `json:"token_expiry"`
	AuthMethod   string    `json:"auth_method"`
}

// Store holds one Bundle per account key.
type Store interface {
	Read(accountKey string) (Bundle, error)
	Write(accountKey string, b Bundle) error
	Destroy(accountKey string) error
}
