package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a tint-backed slog logger writing to w.
func New(w io.Writer, level slog.Level, color bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
	}))
}

// OpenFile opens path for appending and installs a logger writing to it as the
// default. The caller closes the returned file.
func OpenFile(path string, level slog.Level) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(New(f, level, false))
	return f, nil
}

// Stderr installs a coloured stderr logger as the default.
func Stderr(level slog.Level) {
	slog.SetDefault(New(os.Stderr, level, true))
}
