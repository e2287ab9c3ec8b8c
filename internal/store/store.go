package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// PersistentStore is the job history ledger. It records what was fetched
// and how it went; it does not hold resume state, interrupted downloads
// start over.
type PersistentStore struct {
	db *sql.DB
}

func NewPersistentStore(dbPath string) (*PersistentStore, error) {
	dbDir := filepath.Dir(dbPath)

	// Ensure the database directory exists
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	store := &PersistentStore{db: db}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}

	return store, nil
}

func (s *PersistentStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS fetch_jobs (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			url           TEXT NOT NULL,
			sequential    INTEGER NOT NULL DEFAULT 0,
			status        TEXT NOT NULL,
			total_bytes   INTEGER NOT NULL DEFAULT 0,
			bytes_written INTEGER NOT NULL DEFAULT 0,
			started_at    INTEGER NOT NULL DEFAULT 0,
			error         TEXT NOT NULL DEFAULT ''
		)`)
	return err
}

func (s *PersistentStore) Close() error {
	return s.db.Close()
}
