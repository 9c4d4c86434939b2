// Package capture receives the OAuth authorization code on the local
// redirect URI.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultAddr is where the redirect URI points.
	DefaultAddr = "127.0.0.1:8888"
	// DefaultOut is the artifact the code is written to.
	DefaultOut = "code.txt"

	callbackMarker = "/callback?code"
	codeOffset     = len("/callback?code=")
	reply          = "Code Recieved!\n"
)

// NewHandler answers every request with the fixed acknowledgement. For a GET
// on the callback it writes everything after "/callback?code=" to out and
// passes it to onCode, which may be nil.
func NewHandler(out string, onCode func(string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(reply)); err != nil {
			slog.Warn("failed to write capture response", "error", err)
		}

		uri := r.RequestURI
		if r.Method != http.MethodGet || !strings.Contains(uri, callbackMarker) {
			return
		}

		code := ""
		if len(uri) > codeOffset {
			code = uri[codeOffset:]
		}
		slog.Info("received authorization code")

		if out != "" {
			if err := os.WriteFile(out, []byte(code), 0o600); err != nil {
				slog.Error("failed to write authorization code", "path", out, "error", err)
			}
		}
		if onCode != nil {
			onCode(code)
		}
	})
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("capture server shutdown error", "error", err)
		}
	}()

	slog.Info("capture server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
