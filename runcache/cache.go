// Package runcache remembers run outcomes by code and settings, so identical runs are not repeated.
package runcache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/sandbox"
	"github.com/reusee/scisandbox/storages"
)

const migration = `
CREATE TABLE IF NOT EXISTS outcomes (
	key        TEXT PRIMARY KEY,
	outcome    BLOB NOT NULL,
	failure    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
)`

// Cache is an in-memory LRU in front of an optional sqlite table.
type Cache struct {
	db *sql.DB
	// front holds encoded outcomes, so callers never share a cached value.
	front  *lru.Cache[string, []byte]
	logger logs.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var _ sandbox.Cache = new(Cache)

// New opens a cache. An empty path keeps outcomes in memory only.
func New(ctx context.Context, path string, size int, logger logs.Logger) (*Cache, error) {
	front, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		front:  front,
		logger: logger,
	}
	if path != "" {
		c.db, err = storages.OpenSQLite(ctx, path, migration)
		if err != nil {
			return nil, fmt.Errorf("run cache: %w", err)
		}
	}
	return c, nil
}

func (c *Cache) Get(ctx context.Context, key string) (*sandbox.Outcome, bool, error) {
	data, ok := c.front.Get(key)
	if !ok && c.db != nil {
		err := c.db.QueryRowContext(ctx, `SELECT outcome FROM outcomes WHERE key = ?`, key).Scan(&data)
		switch {
		case err == nil:
			ok = true
			c.front.Add(key, data)
		case !errors.Is(err, sql.ErrNoRows):
			return nil, false, fmt.Errorf("run cache: get: %w", err)
		}
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	var outcome sandbox.Outcome
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&outcome); err != nil {
		// stale encoding
		c.logger.WarnContext(ctx, "drop cached outcome", "key", key, "error", err)
		c.front.Remove(key)
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return &outcome, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, outcome *sandbox.Outcome) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(outcome); err != nil {
		return fmt.Errorf("run cache: encode: %w", err)
	}
	data := buf.Bytes()
	c.front.Add(key, data)
	if c.db == nil {
		return nil
	}
	failure := ""
	if outcome.Failure != nil {
		failure = outcome.Failure.Kind.String()
	}
	return storages.WithTx(ctx, c.db, func(tx storages.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT OR REPLACE INTO outcomes (key, outcome, failure, created_at) VALUES (?, ?, ?, ?)`,
			key, data, failure, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("run cache: put: %w", err)
		}
		return nil
	})
}

// Prune deletes persisted outcomes older than the age.
func (c *Cache) Prune(ctx context.Context, age time.Duration) (int64, error) {
	if c.db == nil {
		return 0, nil
	}
	var n int64
	err := storages.WithTx(ctx, c.db, func(tx storages.Tx) error {
		res, err := tx.Exec(ctx, `DELETE FROM outcomes WHERE created_at < ?`, time.Now().UTC().Add(-age))
		if err != nil {
			return fmt.Errorf("run cache: prune: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	c.front.Purge()
	return n, nil
}

type Stats struct {
	Hits   int64
	Misses int64
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
