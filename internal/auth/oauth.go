package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthCredential fetches bearer tokens from an OAuth2 client-credentials
// endpoint. A token is reused until it expires. Fetches run under the
// caller's context, so a slow token endpoint costs at most the caller's
// deadline.
type OAuthCredential struct {
	cfg *clientcredentials.Config

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewOAuthCredential configures a client-credentials flow against tokenURL.
func NewOAuthCredential(tokenURL, clientID, clientSecret string, scopes ...string) *OAuthCredential {
	return &OAuthCredential{cfg: &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}}
}

// Token implements the inference credential contract.
func (c *OAuthCredential) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.tok
	c.mu.Unlock()

	if !tok.Valid() {
		fresh, err := c.cfg.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("oauth token: %w", err)
		}
		c.mu.Lock()
		c.tok = fresh
		c.mu.Unlock()
		tok = fresh
	}
	if tok.AccessToken == "" {
		return "", ErrMissingToken
	}
	return tok.AccessToken, nil
}
