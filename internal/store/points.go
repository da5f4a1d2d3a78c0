package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PointRecord is a restoration point with its snapshot bytes.
type PointRecord struct {
	ID          int64
	DocumentID  int64
	Name        string
	ImageData   []byte
	Description string
	CreatedAt   time.Time
}

// PointSummary describes a restoration point without its snapshot.
type PointSummary struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// WriteRestorationPoint stores a snapshot and returns its ID.
// Restoration points are never evicted with the log.
func (q *Queries) WriteRestorationPoint(ctx context.Context, rec PointRecord) (int64, error) {
	if len(rec.ImageData) == 0 {
		return 0, fmt.Errorf("write restoration point: empty image data")
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO restoration_points
		(document_id, name, image_data, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.DocumentID,
		NormalizeText(rec.Name),
		rec.ImageData,
		NormalizeText(rec.Description),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("write restoration point: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write restoration point: last insert id: %w", err)
	}
	return id, nil
}

// ReadRestorationPoint loads a point of the given document, snapshot included.
// A point belonging to another document is reported as not found.
func (q *Queries) ReadRestorationPoint(ctx context.Context, documentID, id int64) (PointRecord, error) {
	var (
		rec     PointRecord
		created string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, document_id, name, image_data, description, created_at
		FROM restoration_points
		WHERE id = ? AND document_id = ?
	`, id, documentID).Scan(&rec.ID, &rec.DocumentID, &rec.Name, &rec.ImageData, &rec.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return PointRecord{}, fmt.Errorf("read restoration point %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return PointRecord{}, fmt.Errorf("read restoration point %d: %w", id, err)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return PointRecord{}, err
	}
	return rec, nil
}

// ListRestorationPoints returns a document's points, newest first.
func (q *Queries) ListRestorationPoints(ctx context.Context, documentID int64) ([]PointSummary, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, description, created_at
		FROM restoration_points
		WHERE document_id = ?
		ORDER BY id DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query restoration points: %w", err)
	}
	defer rows.Close()

	points := []PointSummary{}
	for rows.Next() {
		var (
			p       PointSummary
			created string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &created); err != nil {
			return nil, fmt.Errorf("scan restoration point: %w", err)
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restoration points: %w", err)
	}
	return points, nil
}
