// Package websocket mirrors the displayed track to local websocket clients.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"skidoodle/spotify-saver/internal/spotify"
)

const shutdownTimeout = 10 * time.Second

// Server serves the now-playing mirror.
type Server struct {
	addr     string
	hub      *Hub
	upgrader websocket.Upgrader
	now      func() time.Time

	mu          sync.RWMutex
	lastState   *spotify.PlayerState
	lastMessage []byte
}

// NewServer creates a mirror listening on addr.
func NewServer(addr string) *Server {
	return &Server{
		addr: addr,
		hub:  NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler returns the HTTP routes of the mirror.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			s.serveWebsocket(w, r)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Upgrade", "websocket")
		w.Header().Set("Connection", "Upgrade")
		w.WriteHeader(http.StatusUpgradeRequired)
		if _, err := w.Write([]byte("426 Upgrade Required")); err != nil {
			slog.Warn("failed to write upgrade required response", "error", err)
		}
	})
	return mux
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an error status.
		slog.Warn("websocket upgrade failed", "error", err, "remoteAddr", r.RemoteAddr)
		return
	}

	client := newClient(s.hub, conn)
	if !s.attach(client) {
		_ = conn.Close()
		return
	}
	slog.Info("client connected", "client", client.id, "remoteAddr", conn.RemoteAddr())

	go client.writePump()
	go client.readPump()
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Warn("failed to write health response", "error", err)
	}
}

// Run serves the mirror until ctx is cancelled. Publish never blocks once
// Run has returned.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		cancel()
		return err
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		slog.Info("stopping mirror server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("mirror server shutdown error", "error", err)
		}
	}()

	slog.Info("mirror server listening", "addr", ln.Addr().String())
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		return err
	}
	return nil
}
