// Package db provides SQLite persistence for voxnote notes.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/jwulff/voxnote/internal/note"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the database file created inside the data directory.
const FileName = "voxnote.sqlite"

// ErrStorageUnavailable is returned when the database cannot be opened or written.
var ErrStorageUnavailable = errors.New("storage unavailable")

var _ note.Repository = (*Store)(nil)

// Store provides access to the notes table. One Store is opened per process
// and shared by every component that reads or writes notes.
type Store struct {
	db *sqlx.DB
}

// PathIn returns the database path inside dataDir.
func PathIn(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Open opens (creating if needed) the database at path with WAL enabled and
// applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w: %w", ErrStorageUnavailable, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w: %w", ErrStorageUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes n, replacing any existing note with the same id. A note that
// could not be read back is rejected before anything is written.
func (s *Store) Insert(ctx context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notes (id, type, content, audioPath, createdAt)
		VALUES (:id, :type, :content, :audioPath, :createdAt)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			content = excluded.content,
			audioPath = excluded.audioPath,
			createdAt = excluded.createdAt
	`, map[string]any(n.ToRecord()))
	if err != nil {
		return fmt.Errorf("insert note: %w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// List returns every note, newest first.
func (s *Store) List(ctx context.Context) ([]note.Note, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, type, content, audioPath, createdAt
		FROM notes
		ORDER BY createdAt DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	notes := []note.Note{}
	for rows.Next() {
		rec := note.Record{}
		if err := rows.MapScan(rec); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n, err := note.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// Delete removes the note with the given id. Deleting a missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete note: %w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Count returns the number of stored notes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notes`); err != nil {
		return 0, fmt.Errorf("count notes: %w: %w", ErrStorageUnavailable, err)
	}
	return n, nil
}
