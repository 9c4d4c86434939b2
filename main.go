package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"skidoodle/spotify-saver/internal/artwork"
	"skidoodle/spotify-saver/internal/capture"
	"skidoodle/spotify-saver/internal/config"
	"skidoodle/spotify-saver/internal/logger"
	"skidoodle/spotify-saver/internal/nowplaying"
	"skidoodle/spotify-saver/internal/ui"
	"skidoodle/spotify-saver/internal/websocket"
)

const redirectURL = "http://localhost:8888/callback"

var rootCmd = &cobra.Command{
	Use:          "spotify-saver",
	Short:        "Terminal screensaver showing the artwork of the track playing on Spotify",
	SilenceUsage: true,
	RunE:         runSaver,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the screensaver (default)",
	RunE:  runSaver,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Listen for the OAuth redirect and write the authorization code to a file",
	RunE:  runCapture,
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize the app with Spotify and write the credential files",
	RunE:  runAuthorize,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(authorizeCmd)

	rootCmd.PersistentFlags().String("config", "", "Path to the settings file (default ~/.config/spotify-saver/config.toml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().Duration("poll", 0, "Override the now-playing poll interval")
	}

	captureCmd.Flags().String("addr", capture.DefaultAddr, "Listen address")
	captureCmd.Flags().String("out", capture.DefaultOut, "File the authorization code is written to")

	authorizeCmd.Flags().String("addr", capture.DefaultAddr, "Listen address of the redirect handler")
	authorizeCmd.Flags().String("dir", ".", "Directory for constants.json and user.json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSaver(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if poll, _ := cmd.Flags().GetDuration("poll"); poll > 0 {
		cfg.PollInterval = poll
	}

	logFile, err := logger.OpenFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, stop := signalContext()
	defer stop()

	cache := artwork.NewCache()
	if cfg.Placeholder != "" {
		if art, err := artwork.LoadFile(cfg.Placeholder); err != nil {
			slog.Warn("placeholder image unavailable", "path", cfg.Placeholder, "error", err)
		} else {
			cache.Write(art)
		}
	}

	opts := nowplaying.Options{
		ClientID:        cfg.Spotify.ClientID,
		ClientSecret:    cfg.Spotify.ClientSecret,
		RefreshToken:    cfg.Spotify.RefreshToken,
		PollInterval:    cfg.PollInterval,
		RefreshInterval: cfg.RefreshInterval,
		Cache:           cache,
	}

	var wg sync.WaitGroup
	if cfg.MirrorAddr != "" {
		mirror := websocket.NewServer(cfg.MirrorAddr)
		opts.Publisher = mirror
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mirror.Run(ctx); err != nil {
				slog.Error("mirror server failed", "addr", cfg.MirrorAddr, "error", err)
			}
		}()
	}

	svc := nowplaying.NewService(opts)
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Run(ctx)
	}()

	err = ui.Run(ctx, ui.Options{
		Cache:        svc.Cache(),
		Nudge:        svc.Nudge,
		BoxWidth:     cfg.BoxWidth,
		BoxHeight:    cfg.BoxHeight,
		Speed:        cfg.Speed,
		FPS:          cfg.FPS,
		ExitOnMotion: cfg.ExitOnMotion,
	})

	// The renderer returning ends the session for the background tasks too.
	stop()
	wg.Wait()

	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Stderr(cfg.LogLevel)

	addr, _ := cmd.Flags().GetString("addr")
	out, _ := cmd.Flags().GetString("out")

	ctx, stop := signalContext()
	defer stop()

	return capture.ListenAndServe(ctx, addr, capture.NewHandler(out, nil))
}

func runAuthorize(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Stderr(cfg.LogLevel)

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return errors.New("client id and secret are required (constants.json or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET)")
	}

	addr, _ := cmd.Flags().GetString("addr")
	dir, _ := cmd.Flags().GetString("dir")

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.Spotify.ClientID),
		spotifyauth.WithClientSecret(cfg.Spotify.ClientSecret),
		spotifyauth.WithRedirectURL(redirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopeUserReadPlaybackState,
		),
	)

	state := uuid.NewString()
	fmt.Println("Open this URL in your browser to authorize spotify-saver:")
	fmt.Println(auth.AuthURL(state))

	ctx, stop := signalContext()
	defer stop()

	codes := make(chan string, 1)
	handler := capture.NewHandler("", func(raw string) {
		select {
		case codes <- raw:
		default:
		}
	})

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	serveErr := make(chan error, 1)
	go func() { serveErr <- capture.ListenAndServe(serveCtx, addr, handler) }()

	var raw string
	select {
	case raw = <-codes:
	case err := <-serveErr:
		if err == nil {
			err = ctx.Err()
		}
		return fmt.Errorf("capture server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
	cancelServe()

	code, gotState, _ := strings.Cut(raw, "&state=")
	if gotState != state {
		return errors.New("authorization state mismatch")
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	token, err := auth.Exchange(exchangeCtx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("token response carried no refresh token")
	}

	if err := config.WriteArtifacts(dir, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, token.RefreshToken); err != nil {
		return err
	}
	slog.Info("authorization complete", "dir", dir)
	return nil
}
