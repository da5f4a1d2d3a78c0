package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/roach88/retouch/internal/history"
	"github.com/roach88/retouch/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

// StateView is the position of a document.
type StateView struct {
	Document    string `json:"document"`
	UID         string `json:"uid"`
	Position    int    `json:"position"`
	MaxPosition int    `json:"max_position"`
}

func newStateView(s history.State) StateView {
	return StateView{Document: s.Document, UID: s.UID, Position: s.Current, MaxPosition: s.Max}
}

// StepView reports an undo, redo, goto or restore.
type StepView struct {
	StateView
	Action   string `json:"action,omitempty"`
	Restored bool   `json:"restored"`
}

// EntryView is one log entry.
type EntryView struct {
	Position    int       `json:"position"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Current     bool      `json:"current"`
}

// LogView is a document's full log.
type LogView struct {
	StateView
	Entries []EntryView `json:"entries"`
}

func newLogView(s history.State, entries []history.LogEntry) LogView {
	v := LogView{StateView: newStateView(s), Entries: make([]EntryView, len(entries))}
	for i, e := range entries {
		v.Entries[i] = EntryView{
			Position:    e.Position,
			Type:        string(e.Type),
			Description: e.Description,
			CreatedAt:   e.CreatedAt.UTC(),
			Current:     e.IsCurrent,
		}
	}
	return v
}

// PointView is one restoration point.
type PointView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newPointView(p history.PointInfo) PointView {
	return PointView{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt.UTC()}
}

// PointsView lists a document's restoration points, newest first.
type PointsView struct {
	Document string      `json:"document"`
	Points   []PointView `json:"points"`
}

// DocumentView summarizes a known document.
type DocumentView struct {
	UID        string     `json:"uid"`
	Identifier string     `json:"identifier"`
	Actions    int        `json:"actions"`
	Points     int        `json:"points"`
	Favorite   bool       `json:"favorite"`
	LastOpened *time.Time `json:"last_opened,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newDocumentView(d store.DocumentInfo) DocumentView {
	return DocumentView{
		UID:        d.UID,
		Identifier: d.Identifier,
		Actions:    d.Actions,
		Points:     d.Points,
		Favorite:   d.Favorite,
		LastOpened: d.LastOpened,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

// ViewStateView is a document's persisted viewport.
type ViewStateView struct {
	Document   string     `json:"document"`
	Zoom       float64    `json:"zoom"`
	ScrollX    float64    `json:"scroll_x"`
	ScrollY    float64    `json:"scroll_y"`
	FitMode    string     `json:"fit_mode"`
	Favorite   bool       `json:"favorite"`
	LastOpened *time.Time `json:"last_opened,omitempty"`
}

// PrefView is one preference.
type PrefView struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func renderState(w io.Writer, v StateView) error {
	_, err := fmt.Fprintf(w, "Document: %s\nUID: %s\nPosition: %d of %d\n", v.Document, v.UID, v.Position, v.MaxPosition)
	return err
}

func renderStep(w io.Writer, verb string, v StepView) error {
	if v.Action != "" {
		fmt.Fprintf(w, "%s %s: position %d of %d\n", verb, v.Action, v.Position, v.MaxPosition)
	} else {
		fmt.Fprintf(w, "%s: position %d of %d\n", verb, v.Position, v.MaxPosition)
	}
	if !v.Restored {
		_, err := fmt.Fprintln(w, "Image left unchanged: no restoration point precedes this position.")
		return err
	}
	return nil
}

// renderLog prints the log with the current entry marked by ">" and
// undone entries flagged. Position 0 is the image before any entry.
func renderLog(w io.Writer, v LogView) error {
	fmt.Fprintf(w, "Document: %s\nPosition: %d of %d\n\n", v.Document, v.Position, v.MaxPosition)
	fmt.Fprintf(w, "%s%4d  original\n", marker(v.Position == 0), 0)
	for _, e := range v.Entries {
		suffix := ""
		if e.Position > v.Position {
			suffix = " (undone)"
		}
		if _, err := fmt.Fprintf(w, "%s%4d  %s  %-13s  %s%s\n",
			marker(e.Current), e.Position, e.CreatedAt.Format(timeLayout), e.Type, e.Description, suffix); err != nil {
			return err
		}
	}
	return nil
}

func marker(current bool) string {
	if current {
		return "> "
	}
	return "  "
}

func renderPoints(w io.Writer, v PointsView) error {
	fmt.Fprintf(w, "Restoration points for %s:\n", v.Document)
	if len(v.Points) == 0 {
		_, err := fmt.Fprintln(w, "  (none)")
		return err
	}
	for _, p := range v.Points {
		fmt.Fprintf(w, "  #%d  %s  %s", p.ID, p.CreatedAt.Format(timeLayout), p.Name)
		if p.Description != "" {
			fmt.Fprintf(w, " (%s)", p.Description)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func renderDocuments(w io.Writer, docs []DocumentView) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No documents.")
		return err
	}
	for _, d := range docs {
		fav := " "
		if d.Favorite {
			fav = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s  %3d actions  %3d points  %s\n", fav, d.UID, d.Actions, d.Points, d.Identifier); err != nil {
			return err
		}
	}
	return nil
}

func renderViewState(w io.Writer, v ViewStateView) error {
	fmt.Fprintf(w, "Document: %s\n", v.Document)
	fmt.Fprintf(w, "Zoom: %s\n", strconv.FormatFloat(v.Zoom, 'g', -1, 64))
	fmt.Fprintf(w, "Scroll: %s, %s\n", strconv.FormatFloat(v.ScrollX, 'g', -1, 64), strconv.FormatFloat(v.ScrollY, 'g', -1, 64))
	fmt.Fprintf(w, "Fit: %s\n", v.FitMode)
	fmt.Fprintf(w, "Favorite: %s\n", yesNo(v.Favorite))
	last := "never"
	if v.LastOpened != nil {
		last = v.LastOpened.UTC().Format(timeLayout)
	}
	_, err := fmt.Fprintf(w, "Last opened: %s\n", last)
	return err
}

func renderPrefs(w io.Writer, prefs []PrefView) error {
	if len(prefs) == 0 {
		_, err := fmt.Fprintln(w, "No preferences set.")
		return err
	}
	for _, p := range prefs {
		if _, err := fmt.Fprintf(w, "%s=%s\n", p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
