package nowplaying

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"skidoodle/spotify-saver/internal/artwork"
	"skidoodle/spotify-saver/internal/spotify"
)

// PlayerAPI is the remote side of a poll.
type PlayerAPI interface {
	PlayerState(ctx context.Context) (*spotify.PlayerState, error)
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// TokenTrigger requests an out-of-band token refresh.
type TokenTrigger interface {
	Trigger()
}

// Publisher receives every successfully decoded player state.
type Publisher interface {
	Publish(state *spotify.PlayerState)
}

// Poller fetches the player state and the artwork it references, and writes
// the decoded artwork to the cache. Failed polls leave the cache untouched.
type Poller struct {
	api       PlayerAPI
	cache     *artwork.Cache
	refresher TokenTrigger
	publisher Publisher
	kick      chan bool
	wg        sync.WaitGroup
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithTokenTrigger makes unauthorized polls request a token refresh.
func WithTokenTrigger(t TokenTrigger) PollerOption {
	return func(p *Poller) { p.refresher = t }
}

// WithPublisher forwards decoded player states to pub.
func WithPublisher(pub Publisher) PollerOption {
	return func(p *Poller) { p.publisher = pub }
}

// NewPoller creates a new Poller.
func NewPoller(api PlayerAPI, cache *artwork.Cache, opts ...PollerOption) *Poller {
	p := &Poller{
		api:   api,
		cache: cache,
		kick:  make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls every interval until ctx is cancelled. Each poll runs in its own
// goroutine, so a slow request never delays the next tick. It must be run in
// a separate goroutine.
func (p *Poller) Run(ctx context.Context, every time.Duration) {
	slog.Info("poller started", "interval", every)
	defer slog.Info("poller stopped")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-ticker.C:
			p.spawn(ctx, true)
		case mayRefresh := <-p.kick:
			p.spawn(ctx, mayRefresh)
		}
	}
}

// Kick schedules an immediate poll outside the regular cadence. With
// mayRefresh false a rejected token is only logged.
func (p *Poller) Kick(mayRefresh bool) {
	select {
	case p.kick <- mayRefresh:
	default:
	}
}

// Poll performs one poll synchronously.
func (p *Poller) Poll(ctx context.Context) {
	p.poll(ctx, true)
}

func (p *Poller) spawn(ctx context.Context, mayRefresh bool) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(ctx, mayRefresh)
	}()
}

func (p *Poller) poll(ctx context.Context, mayRefresh bool) {
	state, err := p.api.PlayerState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if spotify.IsAuthFailure(err) {
			if mayRefresh && p.refresher != nil {
				slog.Warn("player state rejected token, requesting token refresh", "error", err)
				p.refresher.Trigger()
				return
			}
			slog.Error("player state rejected token", "error", err)
			return
		}
		slog.Error("failed to get player state", "error", err)
		return
	}

	if p.publisher != nil {
		p.publisher.Publish(state)
	}

	url, err := state.ArtworkURL()
	if err != nil {
		if errors.Is(err, spotify.ErrNothingPlaying) {
			slog.Debug("nothing playing, keeping current artwork")
		} else {
			slog.Info("track has no artwork, keeping current artwork", "track", state.Track.Name)
		}
		return
	}

	if current := p.cache.Read(); current != nil && current.URL == url {
		slog.Debug("artwork unchanged", "url", url)
		return
	}

	data, err := p.api.FetchImage(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("failed to fetch artwork", "url", url, "error", err)
		}
		return
	}

	img, err := artwork.Decode(data)
	if err != nil {
		slog.Warn("failed to decode artwork", "url", url, "error", err)
		return
	}

	p.cache.Write(&artwork.Artwork{Image: img, URL: url, FetchedAt: time.Now()})
	slog.Debug("artwork updated", "url", url)
}
