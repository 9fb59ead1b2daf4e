package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/readmodel"
	"github.com/google/uuid"
)

const (
	findCacheEntrySql   = "SELECT fields, last_synced_at, source FROM read_model_cache WHERE cache=? AND business_key=?"
	upsertCacheEntrySql = "INSERT INTO read_model_cache (cache, business_key, fields, last_synced_at, source) VALUES (?, ?, ?, ?, ?) " +
		"ON CONFLICT (cache, business_key) DO UPDATE SET fields=read_model_cache.fields || EXCLUDED.fields, last_synced_at=EXCLUDED.last_synced_at, source=EXCLUDED.source"
	updateCacheEntrySql = "UPDATE read_model_cache SET fields=fields || ?::jsonb, last_synced_at=?, source=? WHERE cache=? AND business_key=?"
)

type cacheQueries struct {
	find   string
	upsert string
	update string
}

// CacheStore keeps read-model cache entries in the 'read_model_cache' table.
type CacheStore struct {
	db      *sql.DB
	queries cacheQueries
	logger  logger.Logger
}

var _ logger.Loggable = (*CacheStore)(nil)
var _ readmodel.Store = (*CacheStore)(nil)

// NewCacheStore builds a store over db. Set useDollar for drivers expecting
// $n placeholders (pgx, lib/pq).
func NewCacheStore(db *sql.DB, useDollar bool) *CacheStore {
	if db == nil {
		panic("db is mandatory")
	}
	q := cacheQueries{find: findCacheEntrySql, upsert: upsertCacheEntrySql, update: updateCacheEntrySql}
	if useDollar {
		q.find = convertToDollarPlaceholder(q.find)
		q.upsert = convertToDollarPlaceholder(q.upsert)
		q.update = convertToDollarPlaceholder(q.update)
	}
	return &CacheStore{
		db:      db,
		queries: q,
		logger:  &logger.NopLogger{},
	}
}

// SetLogger sets an optional logger.
func (s *CacheStore) SetLogger(l logger.Logger) {
	s.logger = logger.OrNop(l)
}

// Find returns the entry for key in cache, or nil when there is none.
func (s *CacheStore) Find(ctx context.Context, cache string, key uuid.UUID) (*readmodel.Entry, error) {
	var raw []byte
	e := &readmodel.Entry{Cache: cache, Key: key}
	err := s.db.QueryRowContext(ctx, s.queries.find, cache, key).Scan(&raw, &e.LastSyncedAt, &e.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read the cache entry: %w", err)
	}
	if err := json.Unmarshal(raw, &e.Fields); err != nil {
		return nil, fmt.Errorf("could not decode the cache entry fields: %w", err)
	}
	return e, nil
}

// Save merges e.Fields over the stored fields in a single statement, so
// events of different types applied at the same time for one key never drop
// each other's values. New entries are upserted for the same reason.
func (s *CacheStore) Save(ctx context.Context, e *readmodel.Entry, created bool) error {
	delta := e.Fields
	if delta == nil {
		delta = map[string]any{}
	}
	fields, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("could not encode the cache entry fields: %w", err)
	}
	if created {
		if _, err := s.db.ExecContext(ctx, s.queries.upsert, e.Cache, e.Key, fields, e.LastSyncedAt, e.Source); err != nil {
			return fmt.Errorf("could not persist the cache entry: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.queries.update, fields, e.LastSyncedAt, e.Source, e.Cache, e.Key)
	if err != nil {
		return fmt.Errorf("could not update the cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update the cache entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cache entry %s/%s vanished during update", e.Cache, e.Key)
	}
	return nil
}

func convertToDollarPlaceholder(query string) string {
	count := 0
	for strings.Contains(query, "?") {
		count++
		query = strings.Replace(query, "?", fmt.Sprintf("$%d", count), 1)
	}
	return query
}
