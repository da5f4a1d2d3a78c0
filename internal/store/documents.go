package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is one known image.
type Document struct {
	ID         int64
	UID        string // stable UUIDv7, independent of the identifier
	Identifier string // normalized path or caller-chosen key
	CreatedAt  time.Time
}

// DocumentInfo summarizes a document for listings.
type DocumentInfo struct {
	Document
	Actions    int
	Points     int
	Favorite   bool
	LastOpened *time.Time
}

// EnsureDocument returns the document for identifier, creating it if needed.
// The identifier is normalized with NormalizeIdentifier first.
func (q *Queries) EnsureDocument(ctx context.Context, identifier string, now time.Time) (Document, error) {
	key := NormalizeIdentifier(identifier)
	if key == "" {
		return Document{}, fmt.Errorf("ensure document: empty identifier")
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return Document{}, fmt.Errorf("ensure document: generate uid: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO documents (uid, identifier, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(identifier) DO NOTHING
	`, uid.String(), key, formatTime(now))
	if err != nil {
		return Document{}, fmt.Errorf("ensure document: %w", err)
	}

	return q.ReadDocument(ctx, key)
}

// ReadDocument retrieves a document by identifier.
// Returns an error wrapping ErrNotFound if it does not exist.
func (q *Queries) ReadDocument(ctx context.Context, identifier string) (Document, error) {
	key := NormalizeIdentifier(identifier)
	var (
		doc     Document
		created string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, uid, identifier, created_at
		FROM documents
		WHERE identifier = ?
	`, key).Scan(&doc.ID, &doc.UID, &doc.Identifier, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("read document %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read document %q: %w", key, err)
	}
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return Document{}, fmt.Errorf("read document %q: %w", key, err)
	}
	return doc, nil
}

// DeleteDocument removes a document and, through ON DELETE CASCADE, its
// log, restoration points and history state.
// Returns false if no such document existed.
func (q *Queries) DeleteDocument(ctx context.Context, identifier string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM documents WHERE identifier = ?
	`, NormalizeIdentifier(identifier))
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document: rows affected: %w", err)
	}
	return n > 0, nil
}

// ListDocuments returns every document ordered by identifier, with log and
// restoration point counts.
func (q *Queries) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT d.id, d.uid, d.identifier, d.created_at, d.favorite, d.last_opened,
		       (SELECT COUNT(*) FROM history_actions a WHERE a.document_id = d.id),
		       (SELECT COUNT(*) FROM restoration_points p WHERE p.document_id = d.id)
		FROM documents d
		ORDER BY d.identifier COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []DocumentInfo{}
	for rows.Next() {
		var (
			info       DocumentInfo
			created    string
			favorite   int
			lastOpened sql.NullString
		)
		if err := rows.Scan(&info.ID, &info.UID, &info.Identifier, &created, &favorite, &lastOpened,
			&info.Actions, &info.Points); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if info.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if info.LastOpened, err = parseNullTime(lastOpened); err != nil {
			return nil, err
		}
		info.Favorite = favorite != 0
		docs = append(docs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
