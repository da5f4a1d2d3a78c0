package history

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxSize is the default number of log entries retained per document.
const DefaultMaxSize = 30

// UndoPolicy decides what undo does when no restoration point precedes the
// target position.
type UndoPolicy string

const (
	// PolicyBestEffort moves the position anyway and reports Restored=false.
	// The bitmap is left as it was.
	PolicyBestEffort UndoPolicy = "best-effort"

	// PolicyStrict fails with ErrNoSnapshot and changes nothing.
	PolicyStrict UndoPolicy = "strict"
)

// ParseUndoPolicy maps a configuration value to an UndoPolicy.
func ParseUndoPolicy(s string) (UndoPolicy, error) {
	switch UndoPolicy(s) {
	case PolicyBestEffort, PolicyStrict:
		return UndoPolicy(s), nil
	case "":
		return PolicyBestEffort, nil
	default:
		return "", fmt.Errorf("unknown undo policy %q (want %q or %q)", s, PolicyBestEffort, PolicyStrict)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSize sets the retention cap. Values below 1 are ignored.
func WithMaxSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// WithUndoPolicy sets the undo policy.
func WithUndoPolicy(p UndoPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the logger. Records are tagged with the document uid.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics records operation outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithApplier replaces the action catalog used for redo and replay.
func WithApplier(a Applier) Option {
	return func(e *Engine) {
		if a != nil {
			e.applier = a
		}
	}
}
