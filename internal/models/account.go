package models

import "time"

// Account is one row of the local account registry. All per-account storage
// (cache database, preference file, credentials, CA file) is namespaced by
// UniqueHash. At most one account is active at a time.
type Account struct {
	ID int64

	// UniqueHash is an opaque per-install identifier generated locally.
	UniqueHash string

	Email string

	// Host is the base URL of the server this account belongs to.
	Host string

	Active bool

	CreatedAt time.Time
}
