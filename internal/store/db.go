package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the run history database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at dbPath, creating the parent
// directory if needed, and migrates it to the current schema.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return open(dbPath, "PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON")
}

// OpenInMemory opens a migrated in-memory database for tests.
func OpenInMemory() (*DB, error) {
	return open(":memory:", "PRAGMA foreign_keys=ON")
}

func open(dsn string, pragmas ...string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers, and keeps an in-memory
	// database from being split across pooled connections.
	conn.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	db := &DB{conn: conn, path: dsn}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database location, ":memory:" for in-memory databases.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
