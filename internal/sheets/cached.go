package sheets

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/angelmondragon/dailyledger/pkg/redis"
)

// GridCache is the slice of the redis client the cache needs.
type GridCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GridKey(sheetID, rangeName string) string
}

// CachedStore serves reads from a time-boxed cache and drops the cached
// range after every write. Cache failures fall through to the wrapped store.
//
// Every write also moves the range to a new generation. Entries carry the
// generation that was current before their backing read, so a fill that
// raced a write is never served.
type CachedStore struct {
	next  Store
	cache GridCache
	ttl   time.Duration
	logg  *logger.Logger
}

type cachedGrid struct {
	Gen  string    `json:"gen"`
	Grid grid.Grid `json:"grid"`
}

func NewCachedStore(next Store, cache GridCache, ttl time.Duration, logg *logger.Logger) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl, logg: logg}
}

func (c *CachedStore) ReadGrids(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	out := make(map[string]grid.Grid, len(ranges))
	misses := []string{}
	// gens holds the generation seen for each miss; ranges without one are
	// not filled.
	gens := map[string]string{}
	for _, name := range ranges {
		gen, err := c.generation(ctx, sheetID, name)
		if err != nil {
			c.warn(ctx, "grid cache read failed", err)
			misses = append(misses, name)
			continue
		}
		if g, ok := c.lookup(ctx, sheetID, name, gen); ok {
			out[name] = g
			continue
		}
		gens[name] = gen
		misses = append(misses, name)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fresh, err := c.next.ReadGrids(ctx, sheetID, misses)
	if err != nil {
		return nil, err
	}
	for name, g := range fresh {
		out[name] = g
		gen, ok := gens[name]
		if !ok {
			continue
		}
		payload, err := json.Marshal(cachedGrid{Gen: gen, Grid: g})
		if err != nil {
			continue
		}
		if err := c.cache.Set(ctx, c.cache.GridKey(sheetID, name), string(payload), c.ttl); err != nil {
			c.warn(ctx, "grid cache write failed", err)
		}
	}
	return out, nil
}

// ReadGridsFresh reads the wrapped store and leaves the cache alone.
func (c *CachedStore) ReadGridsFresh(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	return c.next.ReadGrids(ctx, sheetID, ranges)
}

func (c *CachedStore) WriteRow(ctx context.Context, sheetID, rangeName string, rowIndex int, cells grid.Row) error {
	err := c.next.WriteRow(ctx, sheetID, rangeName, rowIndex, cells)
	c.invalidate(ctx, sheetID, rangeName)
	return err
}

func (c *CachedStore) AppendRow(ctx context.Context, sheetID, rangeName string, cells grid.Row) (int, error) {
	index, err := c.next.AppendRow(ctx, sheetID, rangeName, cells)
	c.invalidate(ctx, sheetID, rangeName)
	return index, err
}

func (c *CachedStore) lookup(ctx context.Context, sheetID, name, gen string) (grid.Grid, bool) {
	raw, err := c.cache.Get(ctx, c.cache.GridKey(sheetID, name))
	if err != nil {
		if !redis.IsNil(err) {
			c.warn(ctx, "grid cache read failed", err)
		}
		return nil, false
	}
	var entry cachedGrid
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.warn(ctx, "grid cache entry unreadable", err)
		return nil, false
	}
	if entry.Gen != gen {
		return nil, false
	}
	return entry.Grid, true
}

// generation returns the range's current generation, "" before any write.
func (c *CachedStore) generation(ctx context.Context, sheetID, name string) (string, error) {
	gen, err := c.cache.Get(ctx, c.genKey(sheetID, name))
	if redis.IsNil(err) {
		return "", nil
	}
	return gen, err
}

func (c *CachedStore) genKey(sheetID, name string) string {
	return c.cache.GridKey(sheetID, name) + ":gen"
}

// invalidate runs even when the write failed, since a failed write may still
// have landed. The generation key has no expiry.
func (c *CachedStore) invalidate(ctx context.Context, sheetID, rangeName string) {
	if err := c.cache.Set(ctx, c.genKey(sheetID, rangeName), uuid.NewString(), 0); err != nil {
		c.warn(ctx, "grid cache generation bump failed", err)
	}
	if err := c.cache.Del(ctx, c.cache.GridKey(sheetID, rangeName)); err != nil {
		c.warn(ctx, "grid cache invalidation failed", err)
	}
}

func (c *CachedStore) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
}
