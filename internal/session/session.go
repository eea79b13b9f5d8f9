// Package session binds everything belonging to one active account (cache
// database, API client, preferences, credentials) into a single object.
// Switching accounts means closing the old session and opening a new one;
// nothing here is a process-wide singleton.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hisname/photuris/internal/api"
	"github.com/hisname/photuris/internal/credentials"
	"github.com/hisname/photuris/internal/filex"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/models"
	"github.com/hisname/photuris/internal/prefs"
	"github.com/hisname/photuris/internal/store"
)

// Session is the per-account context passed to components that used to rely
// on global state.
type Session struct {
	Account models.Account
	Cache   *store.Cache
	API     api.Client
	Prefs   prefs.Prefs
	Creds   credentials.Store

	layout filex.Layout
	log    logging.Logger
}

// Options tune session construction.
type Options struct {
	// HTTPTimeout bounds every API request. Zero keeps the client default.
	HTTPTimeout time.Duration
}

// Open builds the session for account. The API client picks up the account's
// stored access token when one exists, and the account's CA file when one is
// present on disk.
func Open(ctx context.Context, layout filex.Layout, account models.Account, creds credentials.Store, log logging.Logger, opts Options) (*Session, error) {
	p, err := prefs.Load(layout.AccountPrefs(account.UniqueHash))
	if err != nil {
		return nil, err
	}

	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = account.Host
	}

	var accessToken string
	bundle, err := creds.Read(account.UniqueHash)
	switch {
	case err == nil:
		accessToken = bundle.AccessToken
	case errors.Is(err, credentials.ErrNotFound):
		// Unauthenticated session: local cache still works.
	default:
		return nil, err
	}

	apiOpts := api.Options{Timeout: opts.HTTPTimeout}
	caFile := layout.AccountCAFile(account.UniqueHash)
	if _, statErr := os.Stat(caFile); statErr == nil {
		apiOpts.CAFile = caFile
	}
	client, err := api.NewRESTClient(baseURL, accessToken, apiOpts)
	if err != nil {
		return nil, fmt.Errorf("build api client: %w", err)
	}

	cache, err := store.OpenCache(ctx, layout.AccountDatabase(account.UniqueHash))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	log.Info(ctx, "session opened", "account", account.UniqueHash, "host", baseURL)

	return &Session{
		Account: account,
		Cache:   cache,
		API:     client,
		Prefs:   p,
		Creds:   creds,
		layout:  layout,
		log:     log,
	}, nil
}

// Layout exposes the storage layout the session was opened against.
func (s *Session) Layout() filex.Layout {
	return s.layout
}

// Close releases the cache database and the API client. The session must not
// be used afterwards.
func (s *Session) Close() error {
	var errs []error
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.API != nil {
		if err := s.API.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
