// Package cache provides the durable SQLite store for feed metadata and
// deduplicated items.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"feedcache/internal/model"
)

// DefaultReadLimit caps ReadItems when the caller passes no limit.
const DefaultReadLimit = 100

// Store wraps one SQLite handle. Concurrent logical operations (an
// interactive fetch vs. a background bulk refresh) must each open their
// own Store: the engine serializes writers, and sharing a handle across
// goroutines invites lock contention.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feeds (
		feed_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		etag TEXT,
		last_modified TEXT,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feed_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		published TEXT NOT NULL,
		inserted_at INTEGER NOT NULL,
		UNIQUE(feed_id, item_id)
	);
	CREATE INDEX IF NOT EXISTS idx_items_inserted_at ON items(inserted_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// FeedMeta returns the stored conditional-GET metadata for a feed.
// Both values are empty for a feed that has never been fetched.
func (s *Store) FeedMeta(feedID string) (etag, lastModified string, err error) {
	var e, lm sql.NullString
	err = s.db.QueryRow("SELECT etag, last_modified FROM feeds WHERE feed_id = ?", feedID).Scan(&e, &lm)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return e.String, lm.String, nil
}

// UpsertFeedMeta inserts or replaces the conditional metadata for a
// feed, refreshing updated_at. Last writer wins.
func (s *Store) UpsertFeedMeta(feedID, url, etag, lastModified string) error {
	_, err := s.db.Exec(`
		INSERT INTO feeds (feed_id, url, etag, last_modified, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(feed_id) DO UPDATE SET
			url = excluded.url,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at`,
		feedID, url, nullIfEmpty(etag), nullIfEmpty(lastModified), time.Now().Unix())
	return err
}

// ReadItems returns cached items for the subscription, most recently
// ingested first. The surrogate id breaks same-second ties so read
// order is deterministic. limit <= 0 falls back to DefaultReadLimit.
func (s *Store) ReadItems(sub model.Subscription, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	rows, err := s.db.Query(`
		SELECT title, link, published FROM items
		WHERE feed_id = ?
		ORDER BY inserted_at DESC, id DESC
		LIMIT ?`, sub.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it := model.Item{FeedID: sub.ID, FeedTitle: sub.Title}
		if err := rows.Scan(&it.Title, &it.Link, &it.Published); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertItems inserts the entries not seen before and reports how many
// rows were actually added. A conflict on the (feed_id, item_id) key is
// skipped, never overwritten: an item's persisted fields do not change
// on re-sight. The whole batch commits as one transaction.
func (s *Store) UpsertItems(sub model.Subscription, entries []model.Entry) (int, error) {
	now := time.Now().Unix()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO items (feed_id, item_id, title, link, published, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, item_id) DO NOTHING`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "(no title)"
		}
		res, err := stmt.Exec(sub.ID, e.ItemID(), title, e.Link, e.Published, now)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
