// Package cache stores classifier verdicts in SQLite so that identical
// excerpts are answered once across runs.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the database file created in the data directory.
const FileName = "verdicts.db"

// Entry is one cached verdict.
type Entry struct {
	Status   string
	Detail   string
	Response string
}

// Cache is a verdict store backed by a SQLite file. A Cache is safe for
// concurrent use.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens or creates the cache database in dataDir.
func Open(dataDir string) (*Cache, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// One connection: SQLite serializes writers and the pool would only
	// surface SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file.
func (c *Cache) Path() string { return c.path }

// Key derives the cache key for an excerpt classified under the given
// model and template digest.
func Key(model, templateDigest, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", model, templateDigest, content)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry for key. ok is false when there is none.
func (c *Cache) Get(ctx context.Context, key string) (e Entry, ok bool, err error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT status, detail, response FROM verdicts WHERE cache_key = ?`, key)
	if err := row.Scan(&e.Status, &e.Detail, &e.Response); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("read verdict: %w", err)
	}
	return e, true, nil
}

// Put stores e under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, e Entry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO verdicts (cache_key, status, detail, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, e.Status, e.Detail, e.Response, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}

// Len returns the number of stored verdicts.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verdicts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count verdicts: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
