package counter

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/eringen/viewcounter/internal/logger"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps counters in a local SQLite file.
type SQLiteStore struct {
	db           *sql.DB
	log          *logger.Logger
	pollInterval time.Duration
}

// NewSQLiteStore opens (or creates) the database at path, ensures the data
// directory exists, and creates the views table.
func NewSQLiteStore(path string, log *logger.Logger, pollInterval time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("counter: sqlite data dir: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them, not just
	// the first one. WAL lets readers proceed during a write; the busy
	// timeout makes concurrent writers queue instead of failing with
	// SQLITE_BUSY.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("counter: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLiteStore{db: db, log: log, pollInterval: pollInterval}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("counter: sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS views (
    slug TEXT PRIMARY KEY,
    views INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0),
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_views_views ON views(views DESC);
`)
	return err
}

// Increment is a single upsert statement, so SQLite's write lock makes it
// atomic with respect to every other writer.
func (s *SQLiteStore) Increment(ctx context.Context, slug string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO views (slug, views, updated_at) VALUES (?, 1, CURRENT_TIMESTAMP)
ON CONFLICT(slug) DO UPDATE SET views = views + 1, updated_at = CURRENT_TIMESTAMP
RETURNING views`, slug).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counter: sqlite increment: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Get(ctx context.Context, slug string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT views FROM views WHERE slug = ?`, slug).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter: sqlite get: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]PageViews, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug, views FROM views ORDER BY views DESC, slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("counter: sqlite list: %w", err)
	}
	defer rows.Close()

	var pages []PageViews
	for rows.Next() {
		var p PageViews
		if err := rows.Scan(&p.Slug, &p.Views); err != nil {
			return nil, fmt.Errorf("counter: sqlite list: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counter: sqlite list: %w", err)
	}
	return pages, nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, slug string) (<-chan int64, error) {
	return pollSubscribe(ctx, s.log, s.pollInterval, slug, s.Get)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
