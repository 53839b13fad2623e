package progress

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	dbutil "github.com/lmorel/tome/internal/db"
)

const (
	appName    = "tome"
	dbFileName = "tome.db"
)

// Cache is the local fallback tier of the progress store. It keeps the
// last known position per book so offline resume works without the
// backend.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the cache database at the xdg
// data path.
func OpenCache() (*Cache, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenCacheAt(dbPath)
}

// OpenCacheAt opens the cache database at path.
func OpenCacheAt(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS book_progress (
			book_id TEXT PRIMARY KEY,
			position_ms INTEGER NOT NULL,
			segment_index INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			saved_at INTEGER NOT NULL
		)
	`)
	return err
}

// Save upserts the record for its book.
func (c *Cache) Save(rec Record) error {
	return dbutil.WithTx(c.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO book_progress (book_id, position_ms, segment_index, duration_ms, saved_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(book_id) DO UPDATE SET
				position_ms = excluded.position_ms,
				segment_index = excluded.segment_index,
				duration_ms = excluded.duration_ms,
				saved_at = excluded.saved_at
		`, rec.BookID, rec.Position.Milliseconds(), rec.SegmentIndex,
			rec.Duration.Milliseconds(), rec.SavedAt.UnixMilli())
		return err
	})
}

// Get returns the cached record for bookID, or nil when none exists.
func (c *Cache) Get(bookID string) (*Record, error) {
	row := c.db.QueryRow(`
		SELECT position_ms, segment_index, duration_ms, saved_at
		FROM book_progress WHERE book_id = ?
	`, bookID)

	var positionMs, durationMs, savedAt int64
	rec := Record{BookID: bookID}

	err := row.Scan(&positionMs, &rec.SegmentIndex, &durationMs, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no cached progress is valid on first play
	}
	if err != nil {
		return nil, err
	}

	rec.Position = time.Duration(positionMs) * time.Millisecond
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	rec.SavedAt = time.UnixMilli(savedAt)
	rec.normalize()
	return &rec, nil
}

// Delete removes the cached record for bookID. Deleting an absent record
// is success.
func (c *Cache) Delete(bookID string) error {
	return dbutil.WithTx(c.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM book_progress WHERE book_id = ?`, bookID)
		return err
	})
}
