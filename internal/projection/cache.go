package projection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedReadModel wraps a ReadModel with a Redis read-through cache for
// point lookups.  Writes pass through and invalidate the cached row, so a
// cache outage only costs freshness on the cached path, never correctness:
// the inner read model remains the source for every miss.
type CachedReadModel struct {
	inner  ReadModel
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedReadModel wraps inner with caching.  When rdb is nil (Redis
// unreachable at startup) the inner read model is returned unwrapped and
// the service runs without the cache.
func NewCachedReadModel(inner ReadModel, rdb *redis.Client, ttl time.Duration, prefix string) ReadModel {
	if rdb == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "resv"
	}
	return &CachedReadModel{inner: inner, rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *CachedReadModel) key(id string) string { return c.prefix + ":" + id }

// GetByID implements ReadModel.  Cache errors are ignored and fall back to
// the inner store.
func (c *CachedReadModel) GetByID(ctx context.Context, id string) (*ReservationRow, error) {
	if data, err := c.rdb.Get(ctx, c.key(id)).Bytes(); err == nil {
		var row ReservationRow
		if json.Unmarshal(data, &row) == nil {
			return &row, nil
		}
	}
	row, err := c.inner.GetByID(ctx, id)
	if err != nil || row == nil {
		return row, err
	}
	if data, err := json.Marshal(row); err == nil {
		_ = c.rdb.Set(ctx, c.key(id), data, c.ttl).Err()
	}
	return row, nil
}

// UpsertDetails implements ReadModel.
func (c *CachedReadModel) UpsertDetails(ctx context.Context, row ReservationRow) error {
	if err := c.inner.UpsertDetails(ctx, row); err != nil {
		return err
	}
	_ = c.rdb.Del(ctx, c.key(row.ID)).Err()
	return nil
}

// SetStatus implements ReadModel.
func (c *CachedReadModel) SetStatus(ctx context.Context, id, status string, at time.Time) error {
	if err := c.inner.SetStatus(ctx, id, status, at); err != nil {
		return err
	}
	_ = c.rdb.Del(ctx, c.key(id)).Err()
	return nil
}

// List implements ReadModel.  List results are not cached; the filters are
// too varied to invalidate precisely.
func (c *CachedReadModel) List(ctx context.Context, hotelID, status string) ([]ReservationRow, error) {
	return c.inner.List(ctx, hotelID, status)
}

// Truncate implements ReadModel.  Cached rows are removed by scanning the
// key prefix so a rebuild cannot serve stale entries.
func (c *CachedReadModel) Truncate(ctx context.Context) error {
	if err := c.inner.Truncate(ctx); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		_ = c.rdb.Del(ctx, iter.Val()).Err()
	}
	return iter.Err()
}
