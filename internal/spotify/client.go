package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	libspotify "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	apiBaseURL     = "https://api.spotify.com/v1/"
	requestTimeout = 10 * time.Second
	maxImageBytes  = 10 << 20
)

// Client fetches the player state and artwork. It is safe for concurrent use.
type Client struct {
	api         *libspotify.Client
	imageClient *http.Client
}

type clientOptions struct {
	baseURL     string
	transport   http.RoundTripper
	imageClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithBaseURL overrides the Web API base URL.
func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		o.baseURL = u
	}
}

// WithTransport sets the base transport beneath the bearer-token transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

// WithImageClient sets the HTTP client used to download artwork.
func WithImageClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.imageClient = c }
}

// NewClient creates a Client that authorizes every API request with the
// token currently held by tokens.
func NewClient(tokens oauth2.TokenSource, opts ...ClientOption) *Client {
	o := clientOptions{
		baseURL:     apiBaseURL,
		imageClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := &http.Client{
		Timeout: requestTimeout,
		Transport: &oauth2.Transport{
			Source: tokens,
			Base:   o.transport,
		},
	}

	return &Client{
		api:         libspotify.New(httpClient, libspotify.WithBaseURL(o.baseURL)),
		imageClient: o.imageClient,
	}
}

// PlayerState fetches the user's current player state.
// When nothing is playing the returned state has a nil Track.
func (c *Client) PlayerState(ctx context.Context) (*PlayerState, error) {
	state, err := c.api.PlayerState(ctx)
	if err != nil {
		return nil, err
	}
	return newPlayerState(state), nil
}

// FetchImage downloads the raw artwork bytes at url.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create artwork request: %w", err)
	}

	resp, err := c.imageClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close artwork response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read artwork: %w", err)
	}
	return data, nil
}

// IsUnauthorized reports whether err is a 401 from the Web API.
func IsUnauthorized(err error) bool {
	return apiStatus(err) == http.StatusUnauthorized
}

// IsAuthFailure reports whether the Web API rejected the bearer token. Besides
// a 401 this includes the 400 sent for a malformed Authorization header, which
// is what a token slot holding error text produces.
func IsAuthFailure(err error) bool {
	switch apiStatus(err) {
	case http.StatusUnauthorized, http.StatusBadRequest:
		return true
	default:
		return false
	}
}

func apiStatus(err error) int {
	var apiErr libspotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *libspotify.Error
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Status
	}
	return 0
}
