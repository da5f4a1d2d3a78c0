package store

import (
	"context"
	"fmt"
	"time"
)

// ActionRecord is one row of a document's edit log.
// Data is the encoded payload; the store never interprets it.
type ActionRecord struct {
	ID          int64
	DocumentID  int64
	Seq         int64
	Type        string
	Data        []byte
	Description string
	CreatedAt   time.Time
}

// AppendAction writes rec at the end of its document's log.
// Seq is assigned as one past the document's highest seq; ID and Seq are
// filled in on the returned record.
func (q *Queries) AppendAction(ctx context.Context, rec ActionRecord) (ActionRecord, error) {
	var next int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM history_actions WHERE document_id = ?
	`, rec.DocumentID).Scan(&next)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("append action: next seq: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO history_actions
		(document_id, seq, action_type, action_data, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.DocumentID,
		next,
		rec.Type,
		rec.Data,
		NormalizeText(rec.Description),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("append action: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ActionRecord{}, fmt.Errorf("append action: last insert id: %w", err)
	}
	rec.ID = id
	rec.Seq = next
	rec.Description = NormalizeText(rec.Description)
	return rec, nil
}

// ReadActions returns a document's log in log order (seq, then id).
// Returns an empty slice (not nil) when the log is empty.
func (q *Queries) ReadActions(ctx context.Context, documentID int64) ([]ActionRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, document_id, seq, action_type, action_data, description, created_at
		FROM history_actions
		WHERE document_id = ?
		ORDER BY seq ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []ActionRecord{}
	for rows.Next() {
		var (
			rec     ActionRecord
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Seq, &rec.Type, &rec.Data, &rec.Description, &created); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// CountActions returns the number of log entries of a document.
func (q *Queries) CountActions(ctx context.Context, documentID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM history_actions WHERE document_id = ?
	`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

// DeleteActionsFrom removes every entry with seq >= fromSeq (the discarded
// redo branch). Returns the number of rows removed.
func (q *Queries) DeleteActionsFrom(ctx context.Context, documentID, fromSeq int64) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM history_actions
		WHERE document_id = ? AND seq >= ?
	`, documentID, fromSeq)
	if err != nil {
		return 0, fmt.Errorf("delete actions from seq %d: %w", fromSeq, err)
	}
	return rowsAffected(res, "delete actions")
}

// DeleteOldestActions removes the n oldest entries in log order.
// Returns the number of rows removed.
func (q *Queries) DeleteOldestActions(ctx context.Context, documentID int64, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM history_actions
		WHERE id IN (
			SELECT id FROM history_actions
			WHERE document_id = ?
			ORDER BY seq ASC, id ASC
			LIMIT ?
		)
	`, documentID, n)
	if err != nil {
		return 0, fmt.Errorf("delete oldest actions: %w", err)
	}
	return rowsAffected(res, "delete oldest actions")
}

// ClearActions removes a document's whole log.
func (q *Queries) ClearActions(ctx context.Context, documentID int64) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM history_actions WHERE document_id = ?
	`, documentID)
	if err != nil {
		return 0, fmt.Errorf("clear actions: %w", err)
	}
	return rowsAffected(res, "clear actions")
}

type resultRows interface {
	RowsAffected() (int64, error)
}

func rowsAffected(res resultRows, op string) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return int(n), nil
}
