package spotify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const tokenURL = "https://accounts.spotify.com/api/token"

// Refresher exchanges the refresh token for a new access token and stores it
// in Credentials. Refreshes run on a fixed interval and on demand.
type Refresher struct {
	creds              *Credentials
	tokenURL           string
	httpClient         *http.Client
	onTransportFailure func()
	trigger            chan struct{}
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) RefresherOption {
	return func(r *Refresher) { r.tokenURL = u }
}

// WithRefreshHTTPClient sets the HTTP client used for the token exchange.
func WithRefreshHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) { r.httpClient = c }
}

// OnTransportFailure registers fn to run after a refresh fails to reach the
// token endpoint.
func OnTransportFailure(fn func()) RefresherOption {
	return func(r *Refresher) { r.onTransportFailure = fn }
}

// NewRefresher creates a Refresher for creds.
func NewRefresher(creds *Credentials, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		creds:      creds,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh performs one token exchange.
//
// A transport failure stores the error text as the access token and fires the
// transport-failure hook, so the next player request fails authorization
// instead of reporting a missing token. Any other failure keeps the previous
// token.
func (r *Refresher) Refresh(ctx context.Context) {
	conf := &oauth2.Config{
		ClientID:     r.creds.ClientID(),
		ClientSecret: r.creds.ClientSecret(),
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	refreshToken := r.creds.RefreshToken()
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	// A fresh TokenSource per call; a reused one would return its cached token.
	token, err := conf.TokenSource(exchangeCtx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			slog.Error("token endpoint unreachable", "error", err)
			r.creds.SetAccessToken(err.Error())
			if r.onTransportFailure != nil {
				r.onTransportFailure()
			}
			return
		}
		slog.Error("token refresh failed, keeping previous token", "error", err)
		return
	}

	r.creds.SetAccessToken(token.AccessToken)
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		r.creds.setRefreshToken(token.RefreshToken)
		slog.Info("refresh token rotated")
	}
	slog.Debug("access token refreshed", "expiry", token.Expiry)
}

// Trigger requests a refresh from the Run loop. Requests made while one is
// already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes once immediately, then every interval and on Trigger, until
// ctx is cancelled. It must be run in a separate goroutine.
func (r *Refresher) Run(ctx context.Context, every time.Duration) {
	slog.Info("token refresher started", "interval", every)
	defer slog.Info("token refresher stopped")

	r.Refresh(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		case <-r.trigger:
			r.Refresh(ctx)
		}
	}
}
