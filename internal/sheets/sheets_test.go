package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.GridRow{}))
	return NewGormStore(conn)
}

// exerciseStore runs the same contract against every implementation.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	grids, err := store.ReadGrids(ctx, "sheet", []string{"Orders", "Users"})
	require.NoError(t, err)
	assert.Empty(t, grids["Orders"])
	assert.NotNil(t, grids["Users"])

	idx, err := store.AppendRow(ctx, "sheet", "Orders", grid.Row{"orderNumber", "date"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	idx, err = store.AppendRow(ctx, "sheet", "Orders", grid.Row{"1", "01/03/2025", ""})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	require.NoError(t, store.WriteRow(ctx, "sheet", "Orders", 0, grid.Row{"orderNumber", "date", "A"}))
	require.NoError(t, store.WriteRow(ctx, "sheet", "Orders", 3, grid.Row{"3"}))
	_, err = store.AppendRow(ctx, "other", "Orders", grid.Row{"x"})
	require.NoError(t, err)

	grids, err = store.ReadGrids(ctx, "sheet", []string{"Orders"})
	require.NoError(t, err)
	assert.Equal(t, grid.Grid{
		{"orderNumber", "date", "A"},
		{"1", "01/03/2025", ""},
		{},
		{"3"},
	}, grids["Orders"])

	idx, err = store.AppendRow(ctx, "sheet", "Orders", grid.Row{"4"})
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestGormStoreContract(t *testing.T) {
	exerciseStore(t, newGormStore(t))
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	seed := grid.Grid{{"a"}}
	store.Seed("s", "Prices", seed)
	seed[0][0] = "changed"

	grids, err := store.ReadGrids(context.Background(), "s", []string{"Prices"})
	require.NoError(t, err)
	grids["Prices"][0][0] = "mutated"

	again, err := store.ReadGrids(context.Background(), "s", []string{"Prices"})
	require.NoError(t, err)
	assert.Equal(t, "a", again["Prices"][0][0])
}

func TestGormStoreRejectsNegativeIndex(t *testing.T) {
	err := newGormStore(t).WriteRow(context.Background(), "s", "Orders", -1, grid.Row{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

type fakeCache struct {
	data    map[string]string
	gets    int
	deleted []string
	getErr  error
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.gets++
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func (f *fakeCache) GridKey(sheetID, rangeName string) string { return sheetID + ":" + rangeName }

type countingStore struct {
	Store
	reads int
}

func (c *countingStore) ReadGrids(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	c.reads++
	return c.Store.ReadGrids(ctx, sheetID, ranges)
}

func TestCachedStoreServesHitsAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.Seed("s", "Prices", grid.Grid{{"Code", "", "", "A"}})
	backing := &countingStore{Store: mem}
	cache := newFakeCache()
	store := NewCachedStore(backing, cache, time.Minute, nil)

	first, err := store.ReadGrids(ctx, "s", []string{"Prices", "Orders"})
	require.NoError(t, err)
	second, err := store.ReadGrids(ctx, "s", []string{"Prices", "Orders"})
	require.NoError(t, err)
	assert.Equal(t, 1, backing.reads, "second read should be served from cache")
	assert.Equal(t, first, second)

	_, err = store.AppendRow(ctx, "s", "Orders", grid.Row{"orderNumber"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s:Orders"}, cache.deleted)

	third, err := store.ReadGrids(ctx, "s", []string{"Prices", "Orders"})
	require.NoError(t, err)
	assert.Equal(t, 2, backing.reads)
	assert.Equal(t, grid.Grid{{"orderNumber"}}, third["Orders"])

	require.NoError(t, store.WriteRow(ctx, "s", "Prices", 0, grid.Row{"x"}))
	assert.Contains(t, cache.deleted, "s:Prices")
}

func TestCachedStoreFallsThroughOnCacheError(t *testing.T) {
	mem := NewMemoryStore()
	mem.Seed("s", "Users", grid.Grid{{"Name", "ID", "Phone"}})
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	store := NewCachedStore(mem, cache, time.Minute, nil)

	grids, err := store.ReadGrids(context.Background(), "s", []string{"Users"})
	require.NoError(t, err)
	assert.Len(t, grids["Users"], 1)
}

// racingStore runs afterRead once, after its backing read returns and before
// the caller sees the result.
type racingStore struct {
	Store
	afterRead func()
}

func (r *racingStore) ReadGrids(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	out, err := r.Store.ReadGrids(ctx, sheetID, ranges)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return out, err
}

func TestCachedStoreDropsFillThatRacedAWrite(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.Seed("s", "Orders", grid.Grid{{"orderNumber"}})
	backing := &racingStore{Store: mem}
	store := NewCachedStore(backing, newFakeCache(), time.Minute, nil)

	backing.afterRead = func() {
		_, err := store.AppendRow(ctx, "s", "Orders", grid.Row{"1"})
		require.NoError(t, err)
	}
	stale, err := store.ReadGrids(ctx, "s", []string{"Orders"})
	require.NoError(t, err)
	assert.Len(t, stale["Orders"], 1)

	next, err := store.ReadGrids(ctx, "s", []string{"Orders"})
	require.NoError(t, err)
	assert.Equal(t, grid.Grid{{"orderNumber"}, {"1"}}, next["Orders"])
}

func TestReadFreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.Seed("s", "Orders", grid.Grid{{"orderNumber"}})
	cache := newFakeCache()
	store := NewCachedStore(mem, cache, time.Minute, nil)

	_, err := store.ReadGrids(ctx, "s", []string{"Orders"})
	require.NoError(t, err)
	mem.Seed("s", "Orders", grid.Grid{{"orderNumber"}, {"7"}})

	cached, err := store.ReadGrids(ctx, "s", []string{"Orders"})
	require.NoError(t, err)
	assert.Len(t, cached["Orders"], 1, "plain reads may serve the cached range")

	fresh, err := ReadFresh(ctx, store, "s", []string{"Orders"})
	require.NoError(t, err)
	assert.Len(t, fresh["Orders"], 2)

	plain, err := ReadFresh(ctx, mem, "s", []string{"Orders"})
	require.NoError(t, err)
	assert.Len(t, plain["Orders"], 2)
}
