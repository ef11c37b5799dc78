package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

func openTestStore(t *testing.T, cacheCapacity int) Store {
	t.Helper()

	cfg := &Config{
		InMemory:         true,
		CompressionLevel: 2,
		CacheCapacity:    cacheCapacity,
	}
	store, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ref := &Reference{
		Name:      "Sine",
		Labels:    map[string]string{"suite": "blocks"},
		Table:     table.MustFromRows([]string{"time", "y", "z"}, [][]float64{{0, 0.1, math.NaN()}, {0.5, 0.2, 1}, {0.5, 0.3, 2}}),
		CreatedAt: created,
	}
	require.NoError(t, store.Put(ctx, ref))

	got, err := store.Get(ctx, "Sine")
	require.NoError(t, err)
	assert.Equal(t, "Sine", got.Name)
	assert.Equal(t, map[string]string{"suite": "blocks"}, got.Labels)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, []string{"time", "y", "z"}, got.Table.Columns())
	assert.True(t, ref.Table.Equal(got.Table))
}

func TestStorePutValidation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 0)

	err := store.Put(ctx, &Reference{Table: referenceFixture()})
	assert.True(t, failure.IsValidation(err))

	err = store.Put(ctx, &Reference{Name: "x"})
	assert.True(t, failure.IsValidation(err))
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t, 0)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListWithSelectors(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 4)

	for name, suite := range map[string]string{"Step": "blocks", "Sine": "blocks", "Pipe": "fluid"} {
		require.NoError(t, store.Put(ctx, &Reference{
			Name:   name,
			Labels: map[string]string{"suite": suite},
			Table:  referenceFixture(),
		}))
	}

	all, err := store.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Pipe", all[0].Name)
	assert.Equal(t, 2, all[0].Rows)
	assert.Equal(t, []string{"time", "y"}, all[0].Columns)

	blocks, err := store.List(ctx, map[string]string{"suite": "blocks"})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Sine", blocks[0].Name)
	assert.Equal(t, "Step", blocks[1].Name)

	require.NoError(t, store.Delete(ctx, "Sine"))
	blocks, err = store.List(ctx, map[string]string{"suite": "blocks"})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
}

func TestStoreReopenRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Path: t.TempDir(), CompressionLevel: 3}

	store, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, &Reference{
		Name:   "Sine",
		Labels: map[string]string{"suite": "blocks"},
		Table:  referenceFixture(),
	}))
	require.NoError(t, store.Close())

	store, err = Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	metas, err := store.List(ctx, map[string]string{"suite": "blocks"})
	require.NoError(t, err)
	require.Len(t, metas, 1)

	got, err := store.Get(ctx, "Sine")
	require.NoError(t, err)
	assert.True(t, referenceFixture().Equal(got.Table))
}

func TestStoreCanceledContext(t *testing.T) {
	store := openTestStore(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, &Reference{Name: "x", Table: referenceFixture()}), context.Canceled)
	_, err := store.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenWrapsCache(t *testing.T) {
	store := openTestStore(t, 4)
	_, ok := store.(*CachedStore)
	assert.True(t, ok)
}

func referenceFixture() *table.Table {
	return table.MustFromRows([]string{"time", "y"}, [][]float64{{0, 1}, {1, 2}})
}
