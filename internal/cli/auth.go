package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/hisname/photuris/internal/auth"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// readCAPEM loads the optional custom certificate-authority bundle. An empty
// path means the system trust store is used.
func (a *App) readCAPEM() ([]byte, error) {
	path, err := getSimpleText(a.reader, "Path to a custom CA file (empty for none)", os.Stdout)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	return pem, nil
}

// Login signs in with a personal access token. On success the new account
// becomes active and a fresh session is opened for it.
func (a *App) Login(ctx context.Context) error {
	baseURL, err := getSimpleText(a.reader, "Enter server URL", os.Stdout)
	if err != nil {
		return err
	}
	token, err := getSecret("Enter personal access token", os.Stdout)
	if err != nil {
		return err
	}
	caPEM, err := a.readCAPEM()
	if err != nil {
		return err
	}

	account, err := a.auth.LoginPAT(ctx, auth.PATRequest{BaseURL: baseURL, AccessToken: token, CAPEM: caPEM})
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	a.closeSession()
	if err := a.openActiveSession(ctx); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", account.Email)
	return nil
}

// LoginOAuth signs in through the OAuth authorization-code flow. The user
// obtains the code in a browser and pastes it here.
func (a *App) LoginOAuth(ctx context.Context) error {
	baseURL, err := getSimpleText(a.reader, "Enter server URL", os.Stdout)
	if err != nil {
		return err
	}
	clientID, err := getSimpleText(a.reader, "Enter OAuth client id", os.Stdout)
	if err != nil {
		return err
	}
	clientSecret, err := getSecret("Enter OAuth client secret", os.Stdout)
	if err != nil {
		return err
	}
	redirectURI, err := getSimpleText(a.reader, "Enter redirect URI", os.Stdout)
	if err != nil {
		return err
	}
	code, err := getSecret("Enter authorization code", os.Stdout)
	if err != nil {
		return err
	}
	caPEM, err := a.readCAPEM()
	if err != nil {
		return err
	}

	account, err := a.auth.LoginOAuth(ctx, auth.OAuthRequest{
		BaseURL:      baseURL,
		Code:         code,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		CAPEM:        caPEM,
	})
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	a.closeSession()
	if err := a.openActiveSession(ctx); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", account.Email)
	return nil
}
