// Package sqlite implements repository.DocumentStore on SQLite.
//
// All collections share one table. Each row holds a document as JSON; filters
// and ordering go through SQLite's JSON1 functions (json_extract, json_each).
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the document store methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/kansenki.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: every ":memory:" connection is its own empty database,
	// and SQLite serializes writers anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// CREATE ... IF NOT EXISTS keeps every statement idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	// Feeds and rankings read "most recent N of a collection".
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_recent
			ON documents(collection, json_extract(data, '$."createdAt"'));
	`)
	if err != nil {
		return fmt.Errorf("creating documents createdAt index: %w", err)
	}

	return nil
}
