package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// databaseFile is the SQLite database filename inside the data directory.
const databaseFile = "sessions.db"

// SQLiteBackend stores records in an embedded SQLite database. It is the
// preferred backend: higher capacity and cheap prefix listings.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database under dataDir.
func NewSQLiteBackend(dataDir string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(dataDir, databaseFile)

	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS records(
	  key        TEXT PRIMARY KEY,
	  data       TEXT    NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Name identifies the backend for logging.
func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

// IsAvailable probes the database connection.
func (b *SQLiteBackend) IsAvailable() bool {
	return b.db.Ping() == nil
}

// Save stores data under key, overwriting any existing record.
func (b *SQLiteBackend) Save(key string, data []byte) error {
	_, err := b.db.Exec(
		`INSERT INTO records(key, data, updated_at) VALUES(?, ?, unixepoch('subsec') * 1000)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", key, err)
	}
	return nil
}

// Load returns the data stored under key, or ErrNotFound.
func (b *SQLiteBackend) Load(key string) ([]byte, error) {
	var data string
	err := b.db.QueryRow(`SELECT data FROM records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", key, err)
	}
	return []byte(data), nil
}

// Remove deletes the record under key. Missing keys are not an error.
func (b *SQLiteBackend) Remove(key string) error {
	if _, err := b.db.Exec(`DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove record %s: %w", key, err)
	}
	return nil
}

// ListKeys returns all keys with the given prefix, sorted.
func (b *SQLiteBackend) ListKeys(prefix string) ([]string, error) {
	rows, err := b.db.Query(
		`SELECT key FROM records WHERE key LIKE ? || '%' ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Clear removes every record.
func (b *SQLiteBackend) Clear() error {
	if _, err := b.db.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// Usage reports record count and stored bytes.
func (b *SQLiteBackend) Usage() (Usage, error) {
	var u Usage
	err := b.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0) FROM records`,
	).Scan(&u.Records, &u.Bytes)
	if err != nil {
		return Usage{}, fmt.Errorf("query usage: %w", err)
	}
	return u, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
