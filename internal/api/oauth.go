package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExchangeCode trades an OAuth authorization code for an access/refresh token
// pair. When the token response lacks expires_in, the expiry is recovered
// from the access token's own claims.
func (c *RESTClient) ExchangeCode(ctx context.Context, code, clientID, clientSecret, redirectURI string) (TokenGrant, error) {
	form := url.Values{
		"grant_type":    []string{"authorization_code"},
		"code":          []string{strings.TrimSpace(code)},
		"client_id":     []string{clientID},
		"client_secret": []string{clientSecret},
		"redirect_uri":  []string{redirectURI},
	}

	resp, err := c.do(ctx, http.MethodPost, "/oauth/token", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenGrant{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenGrant{}, errorFromResponse(resp)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return TokenGrant{}, &Error{Kind: KindBadPayload, StatusCode: resp.StatusCode, Message: genericLoadError}
	}

	grant := TokenGrant{
		AccessToken:  strings.TrimSpace(body.AccessToken),
		RefreshToken: strings.TrimSpace(body.RefreshToken),
	}
	if body.ExpiresIn > 0 {
		grant.ExpiresAt = time.Now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second)
	} else {
		grant.ExpiresAt = tokenExpiry(grant.AccessToken)
	}
	return grant, nil
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// client has no key material for verification and only needs the timestamp.
func tokenExpiry(accessToken string) time.Time {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.UTC()
}
