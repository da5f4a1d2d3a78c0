package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTime returns a fixed timestamp offset by n seconds.
func testTime(n int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, n, 0, time.UTC)
}

// createTestDocument registers a document and fails the test on error.
func createTestDocument(t *testing.T, s *Store, identifier string) Document {
	t.Helper()
	doc, err := s.EnsureDocument(context.Background(), identifier, testTime(0))
	if err != nil {
		t.Fatalf("EnsureDocument(%q) failed: %v", identifier, err)
	}
	return doc
}

// appendTestAction appends an action with the given type and fails the test on error.
func appendTestAction(t *testing.T, s *Store, docID int64, actionType string, n int) ActionRecord {
	t.Helper()
	rec, err := s.AppendAction(context.Background(), ActionRecord{
		DocumentID:  docID,
		Type:        actionType,
		Data:        []byte(`{}`),
		Description: actionType,
		CreatedAt:   testTime(n),
	})
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}
	return rec
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
