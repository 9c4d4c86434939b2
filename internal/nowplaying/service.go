package nowplaying

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"skidoodle/spotify-saver/internal/artwork"
	"skidoodle/spotify-saver/internal/spotify"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultRefreshInterval = 45 * time.Minute
)

// Options configure a Service.
type Options struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	PollInterval    time.Duration
	RefreshInterval time.Duration

	// Cache receives the artwork; a new one is created when nil.
	Cache     *artwork.Cache
	Publisher Publisher

	// Endpoint overrides, used by tests.
	TokenURL   string
	APIBaseURL string
}

// Service keeps the access token fresh and the artwork cache current. The
// refresher and the poller run as independent periodic tasks that share the
// credential store.
type Service struct {
	creds        *spotify.Credentials
	refresher    *spotify.Refresher
	poller       *Poller
	cache        *artwork.Cache
	pollEvery    time.Duration
	refreshEvery time.Duration
}

// NewService wires the credential store, refresher, client and poller.
func NewService(opts Options) *Service {
	cache := opts.Cache
	if cache == nil {
		cache = artwork.NewCache()
	}

	creds := spotify.NewCredentials(opts.ClientID, opts.ClientSecret, opts.RefreshToken)

	var clientOpts []spotify.ClientOption
	if opts.APIBaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(opts.APIBaseURL))
	}
	client := spotify.NewClient(creds, clientOpts...)

	pollerOpts := []PollerOption{}
	if opts.Publisher != nil {
		pollerOpts = append(pollerOpts, WithPublisher(opts.Publisher))
	}
	poller := NewPoller(client, cache, pollerOpts...)

	refresherOpts := []spotify.RefresherOption{
		// After a failed exchange, poll at once so the failure surfaces; that
		// poll must not request another refresh.
		spotify.OnTransportFailure(func() { poller.Kick(false) }),
	}
	if opts.TokenURL != "" {
		refresherOpts = append(refresherOpts, spotify.WithTokenURL(opts.TokenURL))
	}
	refresher := spotify.NewRefresher(creds, refresherOpts...)
	poller.refresher = refresher

	s := &Service{
		creds:        creds,
		refresher:    refresher,
		poller:       poller,
		cache:        cache,
		pollEvery:    opts.PollInterval,
		refreshEvery: opts.RefreshInterval,
	}
	if s.pollEvery <= 0 {
		s.pollEvery = defaultPollInterval
	}
	if s.refreshEvery <= 0 {
		s.refreshEvery = defaultRefreshInterval
	}
	return s
}

// Cache returns the artwork cache the poller writes to.
func (s *Service) Cache() *artwork.Cache {
	return s.cache
}

// Credentials returns the shared credential store.
func (s *Service) Credentials() *spotify.Credentials {
	return s.creds
}

// Nudge requests an immediate token refresh and poll.
func (s *Service) Nudge() {
	s.refresher.Trigger()
	s.poller.Kick(true)
}

// Run starts both periodic tasks and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	slog.Info("now-playing service started", "poll", s.pollEvery, "refresh", s.refreshEvery)
	defer slog.Info("now-playing service stopped")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.refresher.Run(ctx, s.refreshEvery)
	}()

	go func() {
		defer wg.Done()
		s.poller.Run(ctx, s.pollEvery)
	}()

	wg.Wait()
}
