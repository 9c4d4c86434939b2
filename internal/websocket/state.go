package websocket

import (
	"time"

	"skidoodle/spotify-saver/internal/spotify"
)

// NowPlaying is the client-facing data structure.
type NowPlaying struct {
	IsPlaying bool      `json:"is_playing"`
	Name      string    `json:"name,omitempty"`
	Artists   string    `json:"artists,omitempty"`
	Album     string    `json:"album,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// newNowPlaying creates a client-facing NowPlaying from the player state.
func newNowPlaying(state *spotify.PlayerState, now time.Time) NowPlaying {
	payload := NowPlaying{UpdatedAt: now.UTC()}
	if state == nil {
		return payload
	}
	payload.IsPlaying = state.IsPlaying
	if url, err := state.ArtworkURL(); err == nil {
		payload.ImageURL = url
	}
	if state.Track != nil {
		payload.Name = state.Track.Name
		payload.Artists = state.Track.ArtistNames()
		payload.Album = state.Track.Album.Name
	}
	return payload
}
