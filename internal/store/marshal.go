package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// timeLayout is the TEXT representation of every timestamp column.
// Fixed-width fractional seconds keep lexical and chronological order equal.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NormalizeIdentifier returns the canonical key for a document identifier.
// Paths are cleaned and every identifier is NFC-normalized so that the same
// file reached through differently composed names maps to one document.
func NormalizeIdentifier(identifier string) string {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return ""
	}
	if strings.ContainsRune(id, filepath.Separator) || strings.HasPrefix(id, ".") {
		id = filepath.Clean(id)
	}
	return norm.NFC.String(id)
}

// NormalizeText NFC-normalizes user-supplied labels such as names and descriptions.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
