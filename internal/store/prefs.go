package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Well-known preference keys.
const (
	PrefLastFitMode    = "last_fit_mode"
	PrefLastOpenedPath = "last_opened_path"
	PrefThumbnailSize  = "thumbnail_size"
)

// Preference is one global key/value setting.
type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// GetPreference returns the value stored under key.
// The boolean is false when the key is unset.
func (q *Queries) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, true, nil
}

// SetPreference creates or replaces a preference.
func (q *Queries) SetPreference(ctx context.Context, key, value string, now time.Time) error {
	if key == "" {
		return fmt.Errorf("set preference: empty key")
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, formatTime(now))
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// ListPreferences returns all preferences ordered by key.
func (q *Queries) ListPreferences(ctx context.Context) ([]Preference, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, value, updated_at FROM preferences ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	prefs := []Preference{}
	for rows.Next() {
		var (
			p       Preference
			updated string
		)
		if err := rows.Scan(&p.Key, &p.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		if p.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return prefs, nil
}

// Preferences is a read-through cache over the preferences table.
// All preferences are loaded once; Set writes through to the database.
//
// Thread-safety: safe for concurrent use.
type Preferences struct {
	mu    sync.RWMutex
	q     *Queries
	cache map[string]string
	now   func() time.Time
}

// LoadPreferences reads every preference into a new cache.
func LoadPreferences(ctx context.Context, q *Queries, now func() time.Time) (*Preferences, error) {
	all, err := q.ListPreferences(ctx)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	p := &Preferences{q: q, cache: make(map[string]string, len(all)), now: now}
	for _, pref := range all {
		p.cache[pref.Key] = pref.Value
	}
	return p, nil
}

// Get returns the cached value or def when unset.
func (p *Preferences) Get(key, def string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.cache[key]; ok {
		return v
	}
	return def
}

// Int returns the cached value parsed as an int, or def when unset or malformed.
func (p *Preferences) Int(key string, def int) int {
	v := p.Get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Set writes a preference through to the database and updates the cache.
func (p *Preferences) Set(ctx context.Context, key, value string) error {
	if err := p.q.SetPreference(ctx, key, value, p.now()); err != nil {
		return err
	}
	p.mu.Lock()
	p.cache[key] = value
	p.mu.Unlock()
	return nil
}
