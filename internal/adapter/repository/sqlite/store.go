// Package sqlite persists probed durations and the play-next queue in a SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns the database handle shared by the repositories in this package.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and runs migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS durations (
        path     TEXT PRIMARY KEY,
        dir      TEXT NOT NULL,
        size     INTEGER NOT NULL,
        mod_time INTEGER NOT NULL, -- unix nanoseconds
        millis   INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS durations_dir ON durations(dir);

    CREATE TABLE IF NOT EXISTS queue (
        position INTEGER PRIMARY KEY,
        path     TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS history (
        key   TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(query)
	return err
}
