package storage

import (
	"context"
	"database/sql"
	"fmt"

	"refindex/internal/extractor"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore mirrors the index into a SQLite database for ad-hoc queries.
// The CSV table stays the source of truth.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			file TEXT NOT NULL,
			item_type TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (file, item_type, name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_name ON entries(name);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveEntries replaces the stored snapshot with entries in one transaction.
func (s *SQLiteStore) SaveEntries(ctx context.Context, entries []extractor.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (file, item_type, name) VALUES (?, ?, ?)
		ON CONFLICT(file, item_type, name) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.File, e.Kind.String(), e.Name); err != nil {
			return fmt.Errorf("failed to insert %s %s: %w", e.Kind, e.Name, err)
		}
	}

	return tx.Commit()
}

// LoadEntries returns every stored entry ordered by file, name and item type.
func (s *SQLiteStore) LoadEntries(ctx context.Context) ([]extractor.Entry, error) {
	return s.query(ctx, `SELECT file, item_type, name FROM entries ORDER BY file, name, item_type`)
}

// FindByName returns entries whose name contains substr (ASCII case-insensitive).
func (s *SQLiteStore) FindByName(ctx context.Context, substr string) ([]extractor.Entry, error) {
	return s.query(ctx, `
		SELECT file, item_type, name FROM entries
		WHERE instr(lower(name), lower(?)) > 0
		ORDER BY file, name, item_type
	`, substr)
}

// FindByFile returns the entries recorded for one file.
func (s *SQLiteStore) FindByFile(ctx context.Context, file string) ([]extractor.Entry, error) {
	return s.query(ctx, `SELECT file, item_type, name FROM entries WHERE file = ? ORDER BY name, item_type`, file)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]extractor.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []extractor.Entry
	for rows.Next() {
		var file, label, name string
		if err := rows.Scan(&file, &label, &name); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		kind, err := extractor.ParseKind(label)
		if err != nil {
			return nil, err
		}
		entries = append(entries, extractor.Entry{File: file, Kind: kind, Name: name})
	}
	return entries, rows.Err()
}
