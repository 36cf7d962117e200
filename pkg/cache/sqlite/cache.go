package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/causerie-app/causerie/pkg/models"
)

// ErrInvalidSnapshot is returned when an export document cannot be imported.
var ErrInvalidSnapshot = errors.New("invalid cache snapshot")

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

const (
	encodingPlain = "plain"
	encodingZstd  = "zstd"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	store TEXT NOT NULL,
	id TEXT NOT NULL,
	value BLOB NOT NULL,
	encoding TEXT NOT NULL DEFAULT 'plain',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (store, id)
);
`

// Cache is a namespaced exact-match response store backed by SQLite.
type Cache struct {
	db     *sql.DB
	log    zerolog.Logger
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	hits   atomic.Int64
	misses atomic.Int64
}

// New opens (or creates) the cache database at dbPath.
func New(dbPath string, logger zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &Cache{
		db:  db,
		log: logger.With().Str("component", "cache").Logger(),
		enc: enc,
		dec: dec,
	}, nil
}

// Get returns the value stored under id in store. Absent entries and storage
// failures both report false; failures are logged.
func (c *Cache) Get(ctx context.Context, store models.Store, id string) (json.RawMessage, bool) {
	var value []byte
	var encoding string

	err := c.db.QueryRowContext(ctx,
		`SELECT value, encoding FROM cache_entries WHERE store = ? AND id = ?`,
		string(store), id,
	).Scan(&value, &encoding)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.log.Warn().Err(err).Str("store", string(store)).Str("id", id).Msg("cache read failed")
		}
		c.misses.Add(1)
		return nil, false
	}

	decoded, err := c.decode(value, encoding)
	if err != nil {
		c.log.Warn().Err(err).Str("store", string(store)).Str("id", id).Msg("cache entry undecodable")
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return decoded, true
}

// Put stores value under id in store, replacing any previous value.
func (c *Cache) Put(ctx context.Context, store models.Store, id string, value json.RawMessage) error {
	return c.put(ctx, c.db, store, id, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *Cache) put(ctx context.Context, db execer, store models.Store, id string, value json.RawMessage) error {
	data, encoding := c.encode(store, value)
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (store, id, value, encoding, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(store), id, data, encoding, time.Now().UTC(),
	)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

func (c *Cache) encode(store models.Store, value []byte) ([]byte, string) {
	if store == models.StoreSpeech {
		return c.enc.EncodeAll(value, nil), encodingZstd
	}
	return value, encodingPlain
}

func (c *Cache) decode(value []byte, encoding string) (json.RawMessage, error) {
	switch encoding {
	case encodingPlain, "":
		return value, nil
	case encodingZstd:
		return c.dec.DecodeAll(value, nil)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

// ExportAll returns every entry of every store. Empty stores are present
// with an empty slice.
func (c *Cache) ExportAll(ctx context.Context) (models.Snapshot, error) {
	snap := make(models.Snapshot, len(models.Stores))
	for _, s := range models.Stores {
		snap[s] = []models.CacheEntry{}
	}

	rows, err := c.db.QueryContext(ctx, `SELECT store, id, value, encoding FROM cache_entries ORDER BY store, id`)
	if err != nil {
		return nil, &StorageError{Op: "export", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var store, id, encoding string
		var value []byte
		if err := rows.Scan(&store, &id, &value, &encoding); err != nil {
			return nil, &StorageError{Op: "export", Err: err}
		}
		decoded, err := c.decode(value, encoding)
		if err != nil {
			return nil, &StorageError{Op: "export", Err: fmt.Errorf("%s/%s: %w", store, id, err)}
		}
		snap[models.Store(store)] = append(snap[models.Store(store)], models.CacheEntry{ID: id, Value: decoded})
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "export", Err: err}
	}
	return snap, nil
}

// ImportAll upserts every entry of snap in a single transaction. Entries
// already stored but absent from snap are kept.
func (c *Cache) ImportAll(ctx context.Context, snap models.Snapshot) error {
	for store, entries := range snap {
		if !store.Known() {
			return fmt.Errorf("%w: unknown store %q", ErrInvalidSnapshot, store)
		}
		for i, e := range entries {
			if e.ID == "" {
				return fmt.Errorf("%w: %s entry %d has no id", ErrInvalidSnapshot, store, i)
			}
			if len(e.Value) == 0 || string(e.Value) == "null" {
				return fmt.Errorf("%w: %s entry %q has no value", ErrInvalidSnapshot, store, e.ID)
			}
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "import", Err: err}
	}
	defer tx.Rollback()

	for store, entries := range snap {
		for _, e := range entries {
			if err := c.put(ctx, tx, store, e.ID, e.Value); err != nil {
				return &StorageError{Op: "import", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "import", Err: err}
	}
	return nil
}

// ClearAll removes every entry from every store.
func (c *Cache) ClearAll(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

// Stats returns entry counts and hit/miss counters.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	stats := models.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		ByStore: make(map[models.Store]int64, len(models.Stores)),
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT store, COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM cache_entries GROUP BY store`)
	if err != nil {
		return models.CacheStats{}, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var store string
		var count, size int64
		if err := rows.Scan(&store, &count, &size); err != nil {
			return models.CacheStats{}, &StorageError{Op: "stats", Err: err}
		}
		stats.ByStore[models.Store(store)] = count
		stats.Entries += count
		stats.Bytes += size
	}
	if err := rows.Err(); err != nil {
		return models.CacheStats{}, &StorageError{Op: "stats", Err: err}
	}
	return stats, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	c.dec.Close()
	_ = c.enc.Close()
	return c.db.Close()
}

type snapshotEntry struct {
	ID    *string         `json:"id"`
	Value json.RawMessage `json:"value"`
}

// ReadSnapshot decodes an export document. The top level must be an object
// of store name to entry array.
func ReadSnapshot(r io.Reader) (models.Snapshot, error) {
	var doc map[models.Store][]snapshotEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after the document", ErrInvalidSnapshot)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidSnapshot)
	}

	snap := make(models.Snapshot, len(doc))
	for store, entries := range doc {
		out := make([]models.CacheEntry, 0, len(entries))
		for i, e := range entries {
			if e.ID == nil {
				return nil, fmt.Errorf("%w: %s entry %d has no id", ErrInvalidSnapshot, store, i)
			}
			if len(e.Value) == 0 || string(e.Value) == "null" {
				return nil, fmt.Errorf("%w: %s entry %q has no value", ErrInvalidSnapshot, store, *e.ID)
			}
			out = append(out, models.CacheEntry{ID: *e.ID, Value: e.Value})
		}
		snap[store] = out
	}
	return snap, nil
}

// WriteSnapshot encodes snap as an indented export document.
func WriteSnapshot(w io.Writer, snap models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
