package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/balaji090804/placement-portal/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/placement.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.placement.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Write transactions take the RESERVED lock at BEGIN so concurrent writers
	// queue on busy_timeout instead of failing mid-transaction.
	dbPath := filepath.Join(baseDir, "placement.db")
	dsn := dbPath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// WithTx runs fn inside a write transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: workflow entities and audit log
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS applications (
		  id          TEXT PRIMARY KEY,
		  student_id  TEXT NOT NULL,
		  drive_id    TEXT NOT NULL,
		  status      TEXT NOT NULL,
		  notes       TEXT NOT NULL DEFAULT '',
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL,
		  archived_at INTEGER
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_student_drive
		ON applications(student_id, drive_id);

		CREATE INDEX IF NOT EXISTS idx_applications_drive_status
		ON applications(drive_id, status);

		CREATE TABLE IF NOT EXISTS slots (
		  id         TEXT PRIMARY KEY,
		  drive_id   TEXT NOT NULL,
		  slot_start INTEGER NOT NULL,
		  slot_end   INTEGER NOT NULL,
		  capacity   INTEGER NOT NULL CHECK (capacity > 0),
		  created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_slots_drive_start
		ON slots(drive_id, slot_start);

		CREATE TABLE IF NOT EXISTS slot_bookings (
		  slot_id    TEXT NOT NULL REFERENCES slots(id),
		  drive_id   TEXT NOT NULL,
		  student_id TEXT NOT NULL,
		  booked_at  INTEGER NOT NULL,
		  PRIMARY KEY (slot_id, student_id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_slot_bookings_drive_student
		ON slot_bookings(drive_id, student_id);

		CREATE TABLE IF NOT EXISTS offers (
		  id             TEXT PRIMARY KEY,
		  application_id TEXT NOT NULL REFERENCES applications(id),
		  student_id     TEXT NOT NULL,
		  drive_id       TEXT NOT NULL,
		  status         TEXT NOT NULL,
		  ctc            REAL NOT NULL DEFAULT 0,
		  release_date   INTEGER,
		  accept_by      INTEGER,
		  accepted_at    INTEGER,
		  declined_at    INTEGER,
		  created_at     INTEGER NOT NULL,
		  updated_at     INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_offers_application
		ON offers(application_id);

		CREATE INDEX IF NOT EXISTS idx_offers_student_status
		ON offers(student_id, status);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: audit log split out of the entities, keyed by entity id
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS audit_log (
		  id          TEXT PRIMARY KEY,
		  entity_kind TEXT NOT NULL,
		  entity_id   TEXT NOT NULL,
		  seq         INTEGER NOT NULL,
		  action      TEXT NOT NULL,
		  from_state  TEXT,
		  to_state    TEXT,
		  actor_id    TEXT NOT NULL,
		  at          INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_entity_seq
		ON audit_log(entity_kind, entity_id, seq);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
