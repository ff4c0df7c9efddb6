package schema

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// Cache is an optional read-through store for fetched object_info documents,
// keyed by source (URL or token). Blobs run to several megabytes, so they are
// zstd-compressed at rest. The conversion core never touches the cache; only
// source resolution does, and callers can skip it entirely.
type Cache struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS object_info_cache (
	source TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL,
	payload BLOB NOT NULL
);
`

// OpenCache opens or creates the cache database at path, creating parent
// directories as needed.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening schema cache %s: %w", path, err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached object_info payload for a source, if present and no
// older than maxAge (maxAge <= 0 disables the age check).
func (c *Cache) Get(source string, maxAge time.Duration) ([]byte, bool, error) {
	var fetchedAt int64
	var blob []byte
	err := c.db.QueryRow(
		"SELECT fetched_at, payload FROM object_info_cache WHERE source = ?",
		source,
	).Scan(&fetchedAt, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading schema cache: %w", err)
	}
	if maxAge > 0 && time.Since(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompressing cached payload: %w", err)
	}
	return payload, true, nil
}

// Put stores a payload for a source, replacing any previous entry.
func (c *Cache) Put(source string, payload []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	blob := enc.EncodeAll(payload, nil)
	enc.Close()

	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO object_info_cache (source, fetched_at, payload)
		 VALUES (?, ?, ?)`,
		source, time.Now().Unix(), blob,
	)
	if err != nil {
		return fmt.Errorf("writing schema cache: %w", err)
	}
	return nil
}
