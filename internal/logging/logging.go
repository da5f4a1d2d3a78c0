// Package logging builds the application's slog logger from Config.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a configured logger plus the sink it writes to.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// New builds a logger from cfg merged over DefaultConfig. Records go to
// stderr, to a rotating file or nowhere, depending on the sink. The
// "error" attribute key is written as "err".
func New(cfg Config) (*Logger, error) {
	cfg, err := Merge(DefaultConfig(), cfg).Normalize()
	if err != nil {
		return nil, err
	}
	return build(cfg, os.Stderr)
}

func build(cfg Config, stderr io.Writer) (*Logger, error) {
	w, closer, err := resolveWriter(cfg, stderr)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(deref(cfg.Level)),
		AddSource:   cfg.AddSource != nil && *cfg.AddSource,
		ReplaceAttr: renameError,
	}
	var h slog.Handler
	if cfg.Format != nil && Format(*cfg.Format) == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h), closer: closer}, nil
}

func resolveWriter(cfg Config, stderr io.Writer) (io.Writer, io.Closer, error) {
	sink := SinkStderr
	if cfg.Sink != nil {
		sink = Sink(*cfg.Sink)
	}
	switch sink {
	case SinkNone:
		return io.Discard, nil, nil
	case SinkFile:
		path := filepath.Clean(deref(cfg.File))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    derefInt(cfg.MaxSizeMB),
			MaxBackups: derefInt(cfg.MaxBackups),
			MaxAge:     derefInt(cfg.MaxAgeDays),
			Compress:   cfg.Compress != nil && *cfg.Compress,
		}
		return lj, lj, nil
	default:
		return stderr, nil, nil
	}
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func renameError(_ []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
