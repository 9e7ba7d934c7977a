// Package persistence provides the SQLite render cache. Charts themselves
// are never stored; only finished render output keyed by a digest of the
// request, which is safe because composition is deterministic.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection holding cached renders.
type DB struct {
	conn *sqlx.DB

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats summarises cache contents and traffic since Open.
type Stats struct {
	Entries int64 `db:"entries" json:"entries"`
	Bytes   int64 `db:"bytes" json:"bytes"`
	Hits    int64 `db:"-" json:"hits"`
	Misses  int64 `db:"-" json:"misses"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS renders (
		key TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		body BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_renders_created ON renders(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Get returns the cached body for key. A miss is (nil, false, nil).
func (db *DB) Get(key string) ([]byte, bool, error) {
	var body []byte
	err := db.conn.Get(&body, "SELECT body FROM renders WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		db.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get render %s: %w", key, err)
	}

	db.hits.Add(1)
	if _, err := db.conn.Exec("UPDATE renders SET hits = hits + 1 WHERE key = ?", key); err != nil {
		slog.Debug("render hit count update failed", "key", key, "error", err)
	}
	return body, true, nil
}

// Put stores a render, replacing any previous body for key.
func (db *DB) Put(key, format string, body []byte) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO renders (key, format, body, size, created_at, hits)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		key, format, body, len(body), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put render %s: %w", key, err)
	}
	return nil
}

// Purge deletes every cached render and returns how many were removed.
func (db *DB) Purge() (int64, error) {
	res, err := db.conn.Exec("DELETE FROM renders")
	if err != nil {
		return 0, fmt.Errorf("purge renders: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns the current cache size and hit counters.
func (db *DB) Stats() (Stats, error) {
	var st Stats
	err := db.conn.Get(&st, "SELECT COUNT(*) AS entries, COALESCE(SUM(size), 0) AS bytes FROM renders")
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	st.Hits = db.hits.Load()
	st.Misses = db.misses.Load()
	return st, nil
}

// SaveMeta stores a key-value pair in cache metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO cache_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns "" and no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM cache_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// EnsureVersion purges the cache when version differs from the one the
// cache was filled under, then records version. Callers pass a digest of
// everything that shapes render output (geometry and theme).
func (db *DB) EnsureVersion(version string) (bool, error) {
	prev, err := db.GetMeta("render_version")
	if err != nil {
		return false, fmt.Errorf("read render version: %w", err)
	}
	if prev == version {
		return false, nil
	}

	purged := false
	if prev != "" {
		n, err := db.Purge()
		if err != nil {
			return false, err
		}
		slog.Info("render cache invalidated", "previous", prev, "current", version, "removed", n)
		purged = true
	}
	if err := db.SaveMeta("render_version", version); err != nil {
		return purged, fmt.Errorf("save render version: %w", err)
	}
	return purged, nil
}
