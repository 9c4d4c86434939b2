package nowplaying

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	libspotify "github.com/zmb3/spotify/v2"

	"skidoodle/spotify-saver/internal/artwork"
	"skidoodle/spotify-saver/internal/spotify"
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

type pollResult struct {
	state    *spotify.PlayerState
	stateErr error
	image    []byte
	imageErr error
}

// scriptedAPI replays one pollResult per PlayerState call.
type scriptedAPI struct {
	mu      sync.Mutex
	results []pollResult
	next    int
	current pollResult
	fetched []string
}

func (s *scriptedAPI) PlayerState(ctx context.Context) (*spotify.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.results[s.next]
	s.next++
	return s.current.state, s.current.stateErr
}

func (s *scriptedAPI) FetchImage(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, url)
	return s.current.image, s.current.imageErr
}

func stateWithImages(urls ...string) *spotify.PlayerState {
	track := &spotify.Track{Name: "Song", Album: spotify.Album{Name: "Record"}}
	for _, u := range urls {
		track.Album.Images = append(track.Album.Images, spotify.Image{URL: u})
	}
	return &spotify.PlayerState{IsPlaying: true, Track: track}
}

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func TestPoll_CacheTracksLastSuccessfulPoll(t *testing.T) {
	red := pngBytes(t, color.RGBA{R: 255, A: 255})
	blue := pngBytes(t, color.RGBA{B: 255, A: 255})

	api := &scriptedAPI{results: []pollResult{
		{state: stateWithImages("http://example/red.png"), image: red},
		{stateErr: errors.New("connection reset")},
		{state: &spotify.PlayerState{}},
		{state: stateWithImages()},
		{state: stateWithImages("http://example/blue.png"), image: []byte("corrupt")},
		{state: stateWithImages("http://example/blue.png"), imageErr: errors.New("timeout")},
	}}
	cache := artwork.NewCache()
	p := NewPoller(api, cache)

	p.Poll(context.Background())
	first := cache.Read()
	if first == nil || first.URL != "http://example/red.png" {
		t.Fatalf("after first poll cache = %+v, want red", first)
	}

	for i := 1; i < len(api.results); i++ {
		p.Poll(context.Background())
		if got := cache.Read(); got != first {
			t.Fatalf("poll %d changed cache to %+v", i, got)
		}
	}

	api.results = append(api.results, pollResult{state: stateWithImages("http://example/blue.png"), image: blue})
	p.Poll(context.Background())
	got := cache.Read()
	if got == nil || got.URL != "http://example/blue.png" {
		t.Fatalf("cache = %+v, want blue", got)
	}
	r, _, b, _ := got.Image.At(0, 0).RGBA()
	if r != 0 || b>>8 != 255 {
		t.Fatalf("cached pixel r=%d b=%d, want blue", r>>8, b>>8)
	}
}

func TestPoll_FetchesFirstImageOnly(t *testing.T) {
	white := pngBytes(t, color.White)
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write(white)
	}))
	defer srv.Close()

	api := &scriptedAPI{results: []pollResult{{state: stateWithImages(srv.URL+"/a.png", srv.URL+"/b.png")}}}
	client := spotify.NewClient(spotify.NewCredentials("X", "Y", "Z"))
	cache := artwork.NewCache()
	p := NewPoller(fetchVia{api, client}, cache)

	p.Poll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/a.png" {
		t.Fatalf("fetched %v, want only /a.png", paths)
	}
	if got := cache.Read(); got == nil || got.URL != srv.URL+"/a.png" {
		t.Fatalf("cache = %+v, want a.png", got)
	}
}

// fetchVia takes player states from one API and images from a real client.
type fetchVia struct {
	states *scriptedAPI
	images *spotify.Client
}

func (f fetchVia) PlayerState(ctx context.Context) (*spotify.PlayerState, error) {
	return f.states.PlayerState(ctx)
}

func (f fetchVia) FetchImage(ctx context.Context, url string) ([]byte, error) {
	return f.images.FetchImage(ctx, url)
}

func TestPoll_UnauthorizedRequestsRefresh(t *testing.T) {
	unauthorized := libspotify.Error{Message: "The access token expired", Status: http.StatusUnauthorized}
	api := &scriptedAPI{results: []pollResult{
		{stateErr: unauthorized},
		{stateErr: errors.New("dial tcp: no route to host")},
	}}
	trigger := &countingTrigger{}
	p := NewPoller(api, artwork.NewCache(), WithTokenTrigger(trigger))

	p.Poll(context.Background())
	p.Poll(context.Background())

	if got := trigger.n.Load(); got != 1 {
		t.Fatalf("refresh triggered %d times, want 1", got)
	}
}

func TestPoll_RejectedBearerRequestsRefresh(t *testing.T) {
	malformed := &libspotify.Error{Message: "Only valid bearer authentication supported", Status: http.StatusBadRequest}
	api := &scriptedAPI{results: []pollResult{{stateErr: malformed}}}
	trigger := &countingTrigger{}
	p := NewPoller(api, artwork.NewCache(), WithTokenTrigger(trigger))

	p.Poll(context.Background())

	if got := trigger.n.Load(); got != 1 {
		t.Fatalf("refresh triggered %d times, want 1", got)
	}
}

func TestPoll_SkipsFetchForCachedArtwork(t *testing.T) {
	red := pngBytes(t, color.RGBA{R: 255, A: 255})
	api := &scriptedAPI{results: []pollResult{
		{state: stateWithImages("http://example/red.png"), image: red},
		{state: stateWithImages("http://example/red.png"), image: red},
	}}
	cache := artwork.NewCache()
	p := NewPoller(api, cache)

	p.Poll(context.Background())
	first := cache.Read()
	p.Poll(context.Background())

	if len(api.fetched) != 1 {
		t.Fatalf("fetched %v, want one download for an unchanged URL", api.fetched)
	}
	if cache.Read() != first {
		t.Fatalf("cache rewritten for unchanged artwork")
	}
}

func TestKick_WithoutRefreshDoesNotTrigger(t *testing.T) {
	api := &scriptedAPI{results: []pollResult{
		{stateErr: libspotify.Error{Message: "Invalid access token", Status: http.StatusUnauthorized}},
	}}
	trigger := &countingTrigger{}
	p := NewPoller(api, artwork.NewCache(), WithTokenTrigger(trigger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Hour)
		close(done)
	}()

	p.Kick(false)
	waitFor(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.next == 1
	})
	cancel()
	<-done

	if got := trigger.n.Load(); got != 0 {
		t.Fatalf("refresh triggered %d times, want 0", got)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []*spotify.PlayerState
}

func (r *recordingPublisher) Publish(state *spotify.PlayerState) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func TestPoll_PublishesDecodedStates(t *testing.T) {
	api := &scriptedAPI{results: []pollResult{
		{state: stateWithImages()},
		{stateErr: errors.New("boom")},
	}}
	pub := &recordingPublisher{}
	p := NewPoller(api, artwork.NewCache(), WithPublisher(pub))

	p.Poll(context.Background())
	p.Poll(context.Background())

	if len(pub.states) != 1 || pub.states[0].Track.Name != "Song" {
		t.Fatalf("published %+v, want the one decoded state", pub.states)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
