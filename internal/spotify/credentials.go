package spotify

import (
	"sync"

	"golang.org/x/oauth2"
)

// Credentials holds the client credentials, the long-lived refresh token and
// the current access token. Only the Refresher writes the tokens; every write
// replaces the whole value.
type Credentials struct {
	clientID     string
	clientSecret string

	mu           sync.RWMutex
	refreshToken string
	accessToken  string
}

// NewCredentials creates a store with an empty access token.
func NewCredentials(clientID, clientSecret, refreshToken string) *Credentials {
	return &Credentials{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
	}
}

// ClientID returns the application client id.
func (c *Credentials) ClientID() string { return c.clientID }

// ClientSecret returns the application client secret.
func (c *Credentials) ClientSecret() string { return c.clientSecret }

// RefreshToken returns the current refresh credential.
func (c *Credentials) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken
}

// CurrentAccessToken returns the access token, or "" before the first refresh.
func (c *Credentials) CurrentAccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken replaces the access token. The value is not validated.
func (c *Credentials) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Credentials) setRefreshToken(token string) {
	c.mu.Lock()
	c.refreshToken = token
	c.mu.Unlock()
}

// Token implements oauth2.TokenSource so the store can back an oauth2.Transport.
// It always returns the current value as a bearer token, even when empty.
func (c *Credentials) Token() (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken: c.CurrentAccessToken(),
		TokenType:   "Bearer",
	}, nil
}
