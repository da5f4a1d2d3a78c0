package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Fit modes understood by the viewer.
const (
	FitModeFit    = "fit"
	FitModeWidth  = "width"
	FitModeHeight = "height"
)

// ViewState is the persisted viewport of a document.
type ViewState struct {
	Zoom       float64
	ScrollX    float64
	ScrollY    float64
	FitMode    string // "" when never set
	Favorite   bool
	LastOpened *time.Time
}

// ValidFitMode reports whether mode is empty or one of the known fit modes.
func ValidFitMode(mode string) bool {
	switch mode {
	case "", FitModeFit, FitModeWidth, FitModeHeight:
		return true
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LoadViewState returns the view state of a document.
func (q *Queries) LoadViewState(ctx context.Context, identifier string) (ViewState, error) {
	var (
		vs         ViewState
		favorite   int
		lastOpened sql.NullString
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT zoom, scroll_x, scroll_y, fit_mode, favorite, last_opened
		FROM documents
		WHERE identifier = ?
	`, NormalizeIdentifier(identifier)).Scan(&vs.Zoom, &vs.ScrollX, &vs.ScrollY, &vs.FitMode, &favorite, &lastOpened)
	if errors.Is(err, sql.ErrNoRows) {
		return ViewState{}, fmt.Errorf("load view state: %w", ErrNotFound)
	}
	if err != nil {
		return ViewState{}, fmt.Errorf("load view state: %w", err)
	}
	vs.Favorite = favorite != 0
	if vs.LastOpened, err = parseNullTime(lastOpened); err != nil {
		return ViewState{}, err
	}
	return vs, nil
}

// SaveViewState stores zoom, scroll offsets and fit mode of a document.
// Favorite and LastOpened are left untouched.
func (q *Queries) SaveViewState(ctx context.Context, identifier string, vs ViewState) error {
	if !finite(vs.Zoom) || vs.Zoom <= 0 {
		return fmt.Errorf("save view state: zoom must be a positive number, got %v", vs.Zoom)
	}
	if !finite(vs.ScrollX) || !finite(vs.ScrollY) {
		return fmt.Errorf("save view state: scroll offsets must be finite, got (%v, %v)", vs.ScrollX, vs.ScrollY)
	}
	if !ValidFitMode(vs.FitMode) {
		return fmt.Errorf("save view state: unknown fit mode %q", vs.FitMode)
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE documents
		SET zoom = ?, scroll_x = ?, scroll_y = ?, fit_mode = ?
		WHERE identifier = ?
	`, vs.Zoom, vs.ScrollX, vs.ScrollY, vs.FitMode, NormalizeIdentifier(identifier))
	if err != nil {
		return fmt.Errorf("save view state: %w", err)
	}
	n, err := rowsAffected(res, "save view state")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("save view state: %w", ErrNotFound)
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (q *Queries) ToggleFavorite(ctx context.Context, identifier string) (bool, error) {
	key := NormalizeIdentifier(identifier)
	var current int
	err := q.db.QueryRowContext(ctx, `
		SELECT favorite FROM documents WHERE identifier = ?
	`, key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("toggle favorite: %w", ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}

	next := current == 0
	if _, err := q.db.ExecContext(ctx, `
		UPDATE documents SET favorite = ? WHERE identifier = ?
	`, boolToInt(next), key); err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return next, nil
}

// TouchLastOpened records when a document was last opened.
func (q *Queries) TouchLastOpened(ctx context.Context, identifier string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE documents SET last_opened = ? WHERE identifier = ?
	`, formatTime(now), NormalizeIdentifier(identifier))
	if err != nil {
		return fmt.Errorf("touch last opened: %w", err)
	}
	return nil
}
