// Package auth implements the sign-in flows: personal access token
// validation and the OAuth code exchange. A successful sign-in creates the
// full per-account state in one go (credential bundle, preference file,
// registry row, optional CA file); a failed one leaves nothing behind.
package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hisname/photuris/internal/api"
	"github.com/hisname/photuris/internal/credentials"
	"github.com/hisname/photuris/internal/filex"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/models"
	"github.com/hisname/photuris/internal/prefs"
	"github.com/hisname/photuris/internal/store"
)

// Authenticator runs the sign-in flows against a remote server and persists
// the resulting account.
type Authenticator struct {
	layout   filex.Layout
	creds    credentials.Store
	accounts store.AccountRepository
	log      logging.Logger

	timeout time.Duration

	// newClient is a seam for tests; the default builds an api.RESTClient.
	newClient func(baseURL, accessToken string, opts api.Options) (api.Client, error)

	// newHash generates account identifiers. Seam for tests.
	newHash func() string
}

func New(layout filex.Layout, creds credentials.Store, accounts store.AccountRepository, timeout time.Duration, log logging.Logger) *Authenticator {
	return &Authenticator{
		layout:   layout,
		creds:    creds,
		accounts: accounts,
		log:      log,
		timeout:  timeout,
		newClient: func(baseURL, accessToken string, opts api.Options) (api.Client, error) {
			return api.NewRESTClient(baseURL, accessToken, opts)
		},
		newHash: uuid.NewString,
	}
}

// PATRequest is a personal-access-token sign-in.
type PATRequest struct {
	BaseURL     string
	AccessToken string

	// CAPEM, when non-empty, is a PEM bundle for a private certificate
	// authority. It is written to the account's CA file before the probe and
	// removed again if the sign-in fails.
	CAPEM []byte
}

// OAuthRequest is an OAuth authorization-code sign-in.
type OAuthRequest struct {
	BaseURL      string
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CAPEM        []byte
}

// LoginPAT validates the token with a current-user probe and persists the
// account. The returned error is an *api.Error carrying the user-facing
// message for TLS and transport failures.
func (a *Authenticator) LoginPAT(ctx context.Context, req PATRequest) (models.Account, error) {
	hash := a.newHash()

	caFile, err := a.writeCAFile(hash, req.CAPEM)
	if err != nil {
		return models.Account{}, err
	}

	client, err := a.newClient(req.BaseURL, req.AccessToken, api.Options{CAFile: caFile, Timeout: a.timeout})
	if err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, err
	}
	defer client.Close()

	email, err := client.CurrentUser(ctx)
	if err != nil {
		// A half-configured trust store must not outlive the failed attempt.
		a.discardCAFile(ctx, caFile)
		return models.Account{}, api.AsError(err)
	}

	bundle := credentials.Bundle{
		Email:       email,
		AccessToken: req.AccessToken,
		AuthMethod:  credentials.AuthMethodPat,
	}
	return a.persist(ctx, hash, req.BaseURL, bundle, caFile)
}

// LoginOAuth exchanges the authorization code for tokens, resolves the
// account email with a current-user probe, and persists the account.
func (a *Authenticator) LoginOAuth(ctx context.Context, req OAuthRequest) (models.Account, error) {
	hash := a.newHash()

	caFile, err := a.writeCAFile(hash, req.CAPEM)
	if err != nil {
		return models.Account{}, err
	}

	// The exchange client has no token yet.
	exchange, err := a.newClient(req.BaseURL, "", api.Options{CAFile: caFile, Timeout: a.timeout})
	if err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, err
	}
	grant, err := exchange.ExchangeCode(ctx, req.Code, req.ClientID, req.ClientSecret, req.RedirectURI)
	exchange.Close()
	if err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, api.AsError(err)
	}

	client, err := a.newClient(req.BaseURL, grant.AccessToken, api.Options{CAFile: caFile, Timeout: a.timeout})
	if err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, err
	}
	defer client.Close()

	email, err := client.CurrentUser(ctx)
	if err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, api.AsError(err)
	}

	bundle := credentials.Bundle{
		Email:        email,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		TokenExpiry:  grant.ExpiresAt,
		AuthMethod:   credentials.AuthMethodOauth,
	}
	return a.persist(ctx, hash, req.BaseURL, bundle, caFile)
}

// RemoveAccount deletes the registry row together with the account's
// credential bundle, preference file, cache database and CA file.
func (a *Authenticator) RemoveAccount(ctx context.Context, account models.Account) error {
	if err := a.accounts.Delete(ctx, account.ID); err != nil {
		return err
	}
	if err := a.creds.Destroy(account.UniqueHash); err != nil {
		a.log.Warn(ctx, "credential cleanup failed", "account", account.UniqueHash, "err", err)
	}
	for _, path := range []string{
		a.layout.AccountPrefs(account.UniqueHash),
		a.layout.AccountDatabase(account.UniqueHash),
		a.layout.AccountCAFile(account.UniqueHash),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.log.Warn(ctx, "file cleanup failed", "path", path, "err", err)
		}
	}
	a.log.Info(ctx, "account removed", "account", account.UniqueHash)
	return nil
}

// persist writes the credential bundle, the preference file and the registry
// row. The new account becomes the active one.
func (a *Authenticator) persist(ctx context.Context, hash, baseURL string, bundle credentials.Bundle, caFile string) (models.Account, error) {
	if err := a.creds.Write(hash, bundle); err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, fmt.Errorf("store credentials: %w", err)
	}
	if err := prefs.Save(a.layout.AccountPrefs(hash), prefs.Prefs{BaseURL: baseURL}); err != nil {
		a.discardCAFile(ctx, caFile)
		return models.Account{}, err
	}

	account := models.Account{
		UniqueHash: hash,
		Email:      bundle.Email,
		Host:       baseURL,
		Active:     true,
	}
	id, err := a.accounts.Insert(ctx, account)
	if err != nil {
		return models.Account{}, err
	}
	account.ID = id
	a.log.Info(ctx, "signed in", "account", hash, "method", bundle.AuthMethod)
	return account, nil
}

// writeCAFile stores the PEM bundle under the account's CA path. Empty input
// means no custom CA; the returned path is "" then.
func (a *Authenticator) writeCAFile(hash string, pem []byte) (string, error) {
	if len(pem) == 0 {
		return "", nil
	}
	path := a.layout.AccountCAFile(hash)
	if err := os.WriteFile(path, pem, 0o600); err != nil {
		return "", fmt.Errorf("write ca file: %w", err)
	}
	return path, nil
}

func (a *Authenticator) discardCAFile(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.Warn(ctx, "ca file cleanup failed", "path", path, "err", err)
	}
}
