package websocket

import (
	"encoding/json"
	"log/slog"

	"skidoodle/spotify-saver/internal/spotify"
)

// Publish records the latest player state and broadcasts it when the
// displayed track changed.
func (s *Server) Publish(state *spotify.PlayerState) {
	if state == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasStateChanged(state) {
		return
	}
	s.lastState = state

	message, err := json.Marshal(newNowPlaying(state, s.now()))
	if err != nil {
		slog.Error("failed to encode now playing", "error", err)
		return
	}
	s.lastMessage = message

	trackName := "Nothing"
	if state.Track != nil {
		trackName = state.Track.Name
	}
	slog.Info("state changed, broadcasting update", "isPlaying", state.IsPlaying, "track", trackName)
	s.hub.Broadcast(message)
}

// hasStateChanged compares current with the last published state.
// It must be called with s.mu held.
func (s *Server) hasStateChanged(current *spotify.PlayerState) bool {
	last := s.lastState
	if last == nil {
		return true
	}
	if last.IsPlaying != current.IsPlaying {
		return true
	}
	if (last.Track == nil) != (current.Track == nil) {
		return true
	}
	if last.Track == nil {
		return last.ContextURL != current.ContextURL
	}
	if last.Track.ID != current.Track.ID || last.Track.Name != current.Track.Name {
		return true
	}
	lastURL, _ := last.ArtworkURL()
	currentURL, _ := current.ArtworkURL()
	return lastURL != currentURL
}

// attach queues the last published state for a new client and registers it.
// Holding s.mu orders it against Publish, so the client never misses an update.
func (s *Server) attach(c *Client) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastMessage != nil {
		c.send <- s.lastMessage
	}
	return s.hub.Register(c)
}
