// Package database provides optional SQLite persistence for document
// snapshots. The Document Store itself is purely in-memory (spec §1's
// non-goal); this package is the external "retention policy" the spec
// leaves to the caller, generalized from the teacher's flat text/language
// row to a serialized Document (content is stored as its canonical JSON
// encoding).
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kolabhq/tilepad/pkg/model"
)

// Database wraps a SQLite connection holding document snapshots.
type Database struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at uri and applies migrations.
func New(uri string) (*Database, error) {
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Load retrieves a document snapshot by id. Returns nil, nil if absent.
func (d *Database) Load(id string) (*model.Document, error) {
	var doc model.Document
	var content string
	var createdAtUnix int64

	err := d.db.QueryRow(
		"SELECT id, revision, content, hash, created_by, created_at FROM document WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.Revision, &content, &doc.Hash, &doc.CreatedBy, &createdAtUnix)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	if err := json.Unmarshal([]byte(content), &doc.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content for %q: %w", id, err)
	}
	doc.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

	return &doc, nil
}

// Store saves a document snapshot (INSERT or UPDATE on id).
func (d *Database) Store(doc *model.Document) error {
	content, err := json.Marshal(doc.Content)
	if err != nil {
		return fmt.Errorf("marshal content for %q: %w", doc.ID, err)
	}

	query := `
	INSERT INTO document (id, revision, content, hash, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		revision   = excluded.revision,
		content    = excluded.content,
		hash       = excluded.hash
	`

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := d.db.Exec(query, doc.ID, doc.Revision, string(content), doc.Hash, doc.CreatedBy, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", rows)
	}

	return nil
}

// Count returns the total number of persisted documents.
func (d *Database) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM document").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Delete removes a persisted document.
func (d *Database) Delete(id string) error {
	_, err := d.db.Exec("DELETE FROM document WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
