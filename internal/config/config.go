package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultConfigPath      = "~/.config/spotify-saver/config.toml"
	defaultConstantsFile   = "constants.json"
	defaultUserFile        = "user.json"
	defaultPollInterval    = 2 * time.Second
	defaultRefreshInterval = 45 * time.Minute
	defaultBoxWidth        = 32
	defaultBoxHeight       = 16
	defaultSpeed           = 0.5
	defaultFPS             = 60
	defaultLogName         = "spotify-saver.log"
)

// Config holds the application configuration.
type Config struct {
	ConstantsFile   string
	UserFile        string
	PollInterval    time.Duration
	RefreshInterval time.Duration
	BoxWidth        int
	BoxHeight       int
	Speed           float64
	FPS             int
	MirrorAddr      string
	Placeholder     string
	LogFile         string
	LogLevel        slog.Level
	ExitOnMotion    bool
	Spotify         struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
	}
}

// constants mirrors the constants.json artifact.
type constants struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// user mirrors the user.json artifact.
type user struct {
	Refresh string `json:"refresh"`
}

// Load reads .env, the TOML settings file and the credential artifacts.
// A missing settings file or missing artifacts are not errors.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	cfg := defaults()

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := cfg.apply(data); err != nil {
			return nil, err
		}
	}

	cfg.loadCredentials()
	cfg.LogLevel = parseLevel(firstNonEmpty(os.Getenv("LOG_LEVEL"), cfg.levelName))

	return &cfg.Config, nil
}

type loaded struct {
	Config
	levelName string
}

func defaults() *loaded {
	cfg := &loaded{}
	cfg.ConstantsFile = defaultConstantsFile
	cfg.UserFile = defaultUserFile
	cfg.PollInterval = defaultPollInterval
	cfg.RefreshInterval = defaultRefreshInterval
	cfg.BoxWidth = defaultBoxWidth
	cfg.BoxHeight = defaultBoxHeight
	cfg.Speed = defaultSpeed
	cfg.FPS = defaultFPS
	cfg.LogFile = filepath.Join(os.TempDir(), defaultLogName)
	cfg.LogLevel = slog.LevelInfo
	return cfg
}

func (cfg *loaded) apply(data []byte) error {
	var raw struct {
		ConstantsFile   string  `toml:"constants_file"`
		UserFile        string  `toml:"user_file"`
		PollInterval    string  `toml:"poll_interval"`
		RefreshInterval string  `toml:"refresh_interval"`
		BoxWidth        int     `toml:"box_width"`
		BoxHeight       int     `toml:"box_height"`
		Speed           float64 `toml:"speed"`
		FPS             int     `toml:"fps"`
		MirrorAddr      string  `toml:"mirror_addr"`
		Placeholder     string  `toml:"placeholder"`
		LogFile         string  `toml:"log_file"`
		LogLevel        string  `toml:"log_level"`
		ExitOnMotion    bool    `toml:"exit_on_motion"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ConstantsFile); v != "" {
		cfg.ConstantsFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.UserFile); v != "" {
		cfg.UserFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("parse config: invalid poll_interval %q", v)
		}
		cfg.PollInterval = d
	}
	if v := strings.TrimSpace(raw.RefreshInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("parse config: invalid refresh_interval %q", v)
		}
		cfg.RefreshInterval = d
	}
	if raw.BoxWidth > 0 {
		cfg.BoxWidth = raw.BoxWidth
	}
	if raw.BoxHeight > 0 {
		cfg.BoxHeight = raw.BoxHeight
	}
	if raw.Speed > 0 {
		cfg.Speed = raw.Speed
	}
	if raw.FPS > 0 {
		cfg.FPS = raw.FPS
	}
	cfg.MirrorAddr = strings.TrimSpace(raw.MirrorAddr)
	if v := strings.TrimSpace(raw.Placeholder); v != "" {
		cfg.Placeholder = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	cfg.levelName = raw.LogLevel
	cfg.ExitOnMotion = raw.ExitOnMotion
	return nil
}

// loadCredentials fills the Spotify credentials from the artifacts, then lets
// the environment override them. Unreadable artifacts leave empty strings.
func (cfg *loaded) loadCredentials() {
	var c constants
	readArtifact(cfg.ConstantsFile, &c)
	var u user
	readArtifact(cfg.UserFile, &u)

	cfg.Spotify.ClientID = firstNonEmpty(os.Getenv("SPOTIFY_CLIENT_ID"), c.ID)
	cfg.Spotify.ClientSecret = firstNonEmpty(os.Getenv("SPOTIFY_CLIENT_SECRET"), c.Secret)
	cfg.Spotify.RefreshToken = firstNonEmpty(os.Getenv("SPOTIFY_REFRESH_TOKEN"), u.Refresh)

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" || cfg.Spotify.RefreshToken == "" {
		slog.Warn("spotify credentials are incomplete", "constants", cfg.ConstantsFile, "user", cfg.UserFile)
	}
}

func readArtifact(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("credential artifact unavailable", "path", path, "error", err)
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Debug("credential artifact malformed", "path", path, "error", err)
	}
}

// WriteArtifacts stores the credentials as constants.json and user.json in dir.
func WriteArtifacts(dir, clientID, clientSecret, refreshToken string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, defaultConstantsFile), constants{ID: clientID, Secret: clientSecret}); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, defaultUserFile), user{Refresh: refreshToken})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
