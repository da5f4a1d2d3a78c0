package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// HistoryState is the persisted navigation state of a document's log.
// Invariant: 0 <= Current <= Max (also enforced by a CHECK constraint).
type HistoryState struct {
	Current int
	Max     int
}

// ReadState returns the history state of a document.
// The boolean is false when the document has no state row yet.
func (q *Queries) ReadState(ctx context.Context, documentID int64) (HistoryState, bool, error) {
	var st HistoryState
	err := q.db.QueryRowContext(ctx, `
		SELECT current_position, max_position
		FROM history_state
		WHERE document_id = ?
	`, documentID).Scan(&st.Current, &st.Max)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryState{}, false, nil
	}
	if err != nil {
		return HistoryState{}, false, fmt.Errorf("read state: %w", err)
	}
	return st, true, nil
}

// WriteState creates or replaces the history state of a document.
func (q *Queries) WriteState(ctx context.Context, documentID int64, st HistoryState) error {
	if st.Current < 0 || st.Current > st.Max {
		return fmt.Errorf("write state: invalid position %d/%d", st.Current, st.Max)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO history_state (document_id, current_position, max_position)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			current_position = excluded.current_position,
			max_position = excluded.max_position
	`, documentID, st.Current, st.Max)
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
