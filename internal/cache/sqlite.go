package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteMedium stores cache entries in a single SQLite table.
type SQLiteMedium struct {
	db *sql.DB

	mu    sync.Mutex
	stats CacheStats
}

// NewSQLiteMedium opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteMedium(path string) (*SQLiteMedium, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir sqlite dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteMedium{db: db}, nil
}

// Get retrieves a value by key.
func (m *SQLiteMedium) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := m.db.QueryRow(`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		m.stats.Misses++
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("select cache entry: %w", err)
	}
	m.stats.Hits++
	m.stats.LastAccess = time.Now()
	return value, true, nil
}

// Put inserts or replaces the value stored under key.
func (m *SQLiteMedium) Put(key string, value []byte) error {
	_, err := m.db.Exec(
		`INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry stored under key, if any.
func (m *SQLiteMedium) Delete(key string) error {
	if _, err := m.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (m *SQLiteMedium) Clear() error {
	if _, err := m.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	return nil
}

// Stats returns hit/miss counters plus the table's current footprint.
func (m *SQLiteMedium) Stats() CacheStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	_ = m.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM cache_entries`).
		Scan(&stats.ItemCount, &stats.Size)
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// Close closes the underlying database.
func (m *SQLiteMedium) Close() error {
	return m.db.Close()
}
