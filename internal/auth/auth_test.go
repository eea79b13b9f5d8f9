package auth

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hisname/photuris/internal/api"
	"github.com/hisname/photuris/internal/credentials"
	"github.com/hisname/photuris/internal/filex"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/models"
	"github.com/hisname/photuris/internal/prefs"
	"github.com/hisname/photuris/internal/store"
)

const testHash = "11112222-3333-4444-5555-666677778888"

type fakeClient struct {
	currentUser  func(ctx context.Context) (string, error)
	exchangeCode func(ctx context.Context, code, clientID, clientSecret, redirectURI string) (api.TokenGrant, error)
}

func (f *fakeClient) CurrentUser(ctx context.Context) (string, error) { return f.currentUser(ctx) }

func (f *fakeClient) ExchangeCode(ctx context.Context, code, clientID, clientSecret, redirectURI string) (api.TokenGrant, error) {
	return f.exchangeCode(ctx, code, clientID, clientSecret, redirectURI)
}

func (f *fakeClient) ListBudgets(context.Context, int) (api.Page[models.Budget], error) {
	return api.Page[models.Budget]{}, errors.New("not implemented")
}

func (f *fakeClient) ListBills(context.Context, int) (api.Page[models.Bill], error) {
	return api.Page[models.Bill]{}, errors.New("not implemented")
}

func (f *fakeClient) GetBill(context.Context, int64) (models.Bill, error) {
	return models.Bill{}, errors.New("not implemented")
}

func (f *fakeClient) DeleteBill(context.Context, int64) (api.DeleteStatus, error) {
	return api.DeleteFailed, errors.New("not implemented")
}

func (f *fakeClient) ListAttachments(context.Context, int64) ([]models.Attachment, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) Download(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeClient) Close() error { return nil }

type fixture struct {
	layout   filex.Layout
	creds    credentials.Store
	registry *store.Registry
	auth     *Authenticator
}

func setup(t *testing.T, client api.Client) *fixture {
	t.Helper()
	ctx := context.Background()

	layout := filex.Layout{DataDir: t.TempDir()}
	require.NoError(t, layout.Ensure())

	creds, err := credentials.NewFileStore(layout.CredentialsDir())
	require.NoError(t, err)

	registry, err := store.OpenRegistry(ctx, layout.RegistryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	a := New(layout, creds, registry.Accounts, 5*time.Second, logging.NewNopLogger())
	a.newHash = func() string { return testHash }
	a.newClient = func(baseURL, accessToken string, opts api.Options) (api.Client, error) {
		return client, nil
	}

	return &fixture{layout: layout, creds: creds, registry: registry, auth: a}
}

func TestLoginPAT_Success(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		currentUser: func(ctx context.Context) (string, error) { return "user@example.com", nil },
	}
	f := setup(t, client)

	account, err := f.auth.LoginPAT(ctx, PATRequest{
		BaseURL:     "https://firefly.example.com",
		AccessToken: "pat-token",
		CAPEM:       []byte("-----BEGIN CERTIFICATE-----"),
	})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", account.Email)
	assert.True(t, account.Active)

	bundle, err := f.creds.Read(testHash)
	require.NoError(t, err)
	assert.Equal(t, "pat-token", bundle.AccessToken)
	assert.Equal(t, credentials.AuthMethodPat, bundle.AuthMethod)

	p, err := prefs.Load(f.layout.AccountPrefs(testHash))
	require.NoError(t, err)
	assert.Equal(t, "https://firefly.example.com", p.BaseURL)

	active, err := f.registry.Accounts.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, testHash, active.UniqueHash)

	assert.FileExists(t, f.layout.AccountCAFile(testHash))
}

func TestLoginPAT_ProbeFailureRemovesCAFile(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		currentUser: func(ctx context.Context) (string, error) {
			return "", &api.Error{Kind: api.KindTLS, Message: "are you using a self-signed certificate?"}
		},
	}
	f := setup(t, client)

	_, err := f.auth.LoginPAT(ctx, PATRequest{
		BaseURL:     "https://firefly.example.com",
		AccessToken: "bad-token",
		CAPEM:       []byte("-----BEGIN CERTIFICATE-----"),
	})
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.KindTLS, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "self-signed")

	// Nothing persisted.
	assert.NoFileExists(t, f.layout.AccountCAFile(testHash))
	_, err = f.creds.Read(testHash)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
	accounts, err := f.registry.Accounts.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLoginOAuth_Success(t *testing.T) {
	ctx := context.Background()
	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{
		exchangeCode: func(ctx context.Context, code, clientID, clientSecret, redirectURI string) (api.TokenGrant, error) {
			assert.Equal(t, "the-code", code)
			assert.Equal(t, "client-1", clientID)
			return api.TokenGrant{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: expiry}, nil
		},
		currentUser: func(ctx context.Context) (string, error) { return "oauth@example.com", nil },
	}
	f := setup(t, client)

	account, err := f.auth.LoginOAuth(ctx, OAuthRequest{
		BaseURL:      "https://firefly.example.com",
		Code:         "the-code",
		ClientID:     "client-1",
		ClientSecret: "hush",
		RedirectURI:  "photuris://callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth@example.com", account.Email)

	bundle, err := f.creds.Read(testHash)
	require.NoError(t, err)
	assert.Equal(t, "access", bundle.AccessToken)
	assert.Equal(t, "refresh", bundle.RefreshToken)
	assert.Equal(t, "client-1", bundle.ClientID)
	assert.Equal(t, credentials.AuthMethodOauth, bundle.AuthMethod)
	assert.True(t, expiry.Equal(bundle.TokenExpiry))
}

func TestLoginOAuth_ExchangeFailure(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		exchangeCode: func(ctx context.Context, code, clientID, clientSecret, redirectURI string) (api.TokenGrant, error) {
			return api.TokenGrant{}, &api.Error{Kind: api.KindServer, StatusCode: 400, Message: "invalid_grant"}
		},
	}
	f := setup(t, client)

	_, err := f.auth.LoginOAuth(ctx, OAuthRequest{BaseURL: "https://x", Code: "expired"})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)

	_, err = f.creds.Read(testHash)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestRemoveAccount_CleansUpFiles(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		currentUser: func(ctx context.Context) (string, error) { return "user@example.com", nil },
	}
	f := setup(t, client)

	account, err := f.auth.LoginPAT(ctx, PATRequest{
		BaseURL:     "https://firefly.example.com",
		AccessToken: "pat-token",
		CAPEM:       []byte("-----BEGIN CERTIFICATE-----"),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.layout.AccountDatabase(testHash), []byte("cache"), 0o600))

	require.NoError(t, f.auth.RemoveAccount(ctx, account))

	accounts, err := f.registry.Accounts.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	_, err = f.creds.Read(testHash)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
	assert.NoFileExists(t, f.layout.AccountPrefs(testHash))
	assert.NoFileExists(t, f.layout.AccountDatabase(testHash))
	assert.NoFileExists(t, f.layout.AccountCAFile(testHash))
}
