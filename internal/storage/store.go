// Package storage implements the embedded SQLite store and its
// repositories. The live database is held in memory on a single
// connection; durability comes from whole-file snapshots written to
// disk on a timer, after auth-critical writes, and at shutdown.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tally/internal/log"

	_ "modernc.org/sqlite"
)

// snapshotTables are the data tables carried across snapshots, in
// foreign-key dependency order.
var snapshotTables = []string{"users", "categories", "transactions", "budgets"}

// Store is the single shared handle to the embedded database.
type Store struct {
	db   *sql.DB
	path string
	log  *log.Logger

	// Serializes snapshot writes; query traffic rides the single
	// connection and needs no extra locking.
	saveMu sync.Mutex
}

// Open creates the in-memory database, runs migrations, and restores the
// last snapshot from path if one exists.
func Open(ctx context.Context, path string, logger *log.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A second connection would open a second, empty memory database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
		log:  logger.WithComponent(log.ComponentStorage),
	}

	if err := s.restore(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}

	return s, nil
}

// restore loads table contents from the snapshot file, if present.
func (s *Store) restore(ctx context.Context) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.log.InfoContext(ctx, "No snapshot file, starting empty", "path", s.path)
		return nil
	} else if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "ATTACH DATABASE ? AS snapshot", s.path); err != nil {
		return fmt.Errorf("attach snapshot: %w", err)
	}
	defer s.db.ExecContext(ctx, "DETACH DATABASE snapshot")

	for _, table := range snapshotTables {
		var name string
		err := s.db.QueryRowContext(ctx,
			"SELECT name FROM snapshot.sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("inspect snapshot table %s: %w", table, err)
		}
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO main.%s SELECT * FROM snapshot.%s", table, table)); err != nil {
			return fmt.Errorf("restore table %s: %w", table, err)
		}
	}

	s.log.InfoContext(ctx, "Snapshot restored", "path", s.path)
	return nil
}

// Save serializes the entire database to the snapshot file, replacing its
// previous contents. The write goes to a temp file first and is renamed
// into place so a crash mid-save never corrupts the last good snapshot.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tmp := s.path + ".tmp"
	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale temp snapshot: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		return fmt.Errorf("vacuum into temp snapshot: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	s.log.DebugContext(ctx, "Snapshot saved", "path", s.path)
	return nil
}

// SaveBestEffort saves a snapshot, logging and swallowing any failure.
// Save failures never fail the triggering request.
func (s *Store) SaveBestEffort(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		s.log.ErrorContext(ctx, "Snapshot save failed", log.FieldError, err, log.FieldOperation, log.OpSave)
	}
}

// DB exposes the underlying handle to the repositories.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
