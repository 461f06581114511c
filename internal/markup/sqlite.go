package markup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/postbuilder/internal/logfields"
)

// SQLiteCache persists conversion results across builds.
type SQLiteCache struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewSQLiteCache opens or creates the cache database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteCache(path string, logger *slog.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db, logger: logger}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS markup_cache (
		key TEXT PRIMARY KEY,
		html TEXT NOT NULL,
		headings TEXT,
		created_at INTEGER NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get implements Cache. Database errors are logged and reported as a miss.
func (c *SQLiteCache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		r        Result
		headings []byte
	)
	err := c.db.QueryRowContext(context.Background(),
		"SELECT html, headings FROM markup_cache WHERE key = ?", key,
	).Scan(&r.HTML, &headings)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("Markup cache lookup failed", logfields.Error(err))
		}
		return nil, false
	}
	if len(headings) > 0 {
		if err := json.Unmarshal(headings, &r.Headings); err != nil {
			c.logger.Warn("Markup cache entry unreadable", logfields.Error(err))
			return nil, false
		}
	}
	return &r, true
}

// Put implements Cache. Database errors are logged; the result is still returned to the caller.
func (c *SQLiteCache) Put(key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	headings, err := json.Marshal(r.Headings)
	if err != nil {
		c.logger.Warn("Markup cache encode failed", logfields.Error(err))
		return
	}
	_, err = c.db.ExecContext(context.Background(),
		"INSERT OR REPLACE INTO markup_cache (key, html, headings, created_at) VALUES (?, ?, ?, ?)",
		key, r.HTML, headings, time.Now().Unix(),
	)
	if err != nil {
		c.logger.Warn("Markup cache store failed", logfields.Error(err))
	}
}

// Prune drops entries older than maxAge and returns how many were removed.
func (c *SQLiteCache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, "DELETE FROM markup_cache WHERE created_at < ?", time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, fmt.Errorf("prune markup cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
