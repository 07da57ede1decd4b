// Package store persists the last finished recording so it survives a
// restart. The blob is opaque; only its bytes and duration are kept, in a
// single-slot SQLite table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/recnode/recnode/internal/logging"
)

// ErrNotFound is returned by Load when no recording has been saved.
var ErrNotFound = errors.New("store: no recording saved")

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	blob BLOB NOT NULL,
	duration REAL NOT NULL,
	saved_at TIMESTAMP NOT NULL
);`

// Store is the single-slot recording store.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens or creates the store at the given path.
func Open(path string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save replaces the stored recording.
func (s *Store) Save(ctx context.Context, blob []byte, duration float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recordings (id, blob, duration, saved_at) VALUES (1, ?, ?, ?)`,
		blob, duration, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving recording: %w", err)
	}
	s.logger.Info("Recording saved", "bytes", len(blob), "duration", duration)
	return nil
}

// Load returns the stored recording, or ErrNotFound.
func (s *Store) Load(ctx context.Context) ([]byte, float64, error) {
	var blob []byte
	var duration float64
	err := s.db.QueryRowContext(ctx,
		`SELECT blob, duration FROM recordings WHERE id = 1`).Scan(&blob, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading recording: %w", err)
	}
	return blob, duration, nil
}

// Delete removes the stored recording. Deleting an empty store is not an
// error.
func (s *Store) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = 1`); err != nil {
		return fmt.Errorf("deleting recording: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
