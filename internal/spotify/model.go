package spotify

import (
	"errors"
	"strings"

	libspotify "github.com/zmb3/spotify/v2"
)

const (
	djPlaylistID = "37i9dQZF1EYkqdzj48dyYq"
	djCoverURL   = "https://lexicon-assets.spotifycdn.com/DJ-Beta-CoverArt-640.jpg"
)

var (
	// ErrNothingPlaying is returned when the player reports no current item.
	ErrNothingPlaying = errors.New("nothing playing")
	// ErrNoArtwork is returned when the current album lists no images.
	ErrNoArtwork = errors.New("no artwork available")
)

// Artist is a track contributor.
type Artist struct {
	Name string `json:"name"`
}

// Image is an album image reference. The first image of an album is the
// canonical one.
type Image struct {
	URL string `json:"url"`
}

// Album represents the album a track belongs to.
type Album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track represents the currently playing item.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
	Album   Album    `json:"album"`
}

// ArtistNames joins the artist names for display.
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// PlayerState is the decoded player resource.
// Track is nil when nothing is playing (item is null or the API answered 204).
type PlayerState struct {
	IsPlaying  bool
	ContextURL string
	Track      *Track
}

// ArtworkURL selects the artwork to display: the first album image. A
// DJ session has no item, so its cover is used instead.
func (s *PlayerState) ArtworkURL() (string, error) {
	if s == nil || s.Track == nil {
		if s != nil && strings.Contains(s.ContextURL, djPlaylistID) {
			return djCoverURL, nil
		}
		return "", ErrNothingPlaying
	}
	if len(s.Track.Album.Images) == 0 {
		return "", ErrNoArtwork
	}
	return s.Track.Album.Images[0].URL, nil
}

func newPlayerState(src *libspotify.PlayerState) *PlayerState {
	if src == nil {
		return &PlayerState{}
	}
	state := &PlayerState{
		IsPlaying:  src.Playing,
		ContextURL: src.PlaybackContext.ExternalURLs["spotify"],
	}
	if src.Item == nil {
		return state
	}

	track := &Track{
		ID:   string(src.Item.ID),
		Name: src.Item.Name,
		Album: Album{
			Name: src.Item.Album.Name,
		},
	}
	for _, a := range src.Item.Artists {
		track.Artists = append(track.Artists, Artist{Name: a.Name})
	}
	for _, img := range src.Item.Album.Images {
		track.Album.Images = append(track.Album.Images, Image{URL: img.URL})
	}
	state.Track = track
	return state
}
