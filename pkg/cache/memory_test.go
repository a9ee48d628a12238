package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgapi/go-apiservice/pkg/cache"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	store := cache.NewMemoryStore()
	assertStore(t, store)
	assert.Equal(t, 3, store.Len())
	require.NoError(t, store.Close())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ValueIsCopied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := cache.NewMemoryStore()

	value := map[string]any{"name": "old"}
	require.NoError(t, store.Write(ctx, testKey, value))
	value["name"] = "modified"

	stored, err := store.Read(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "old"}, stored)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()
	store := cache.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Read(ctx, testKey)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Write(ctx, testKey, "value"), context.Canceled)
}

func TestMemoryStore_EncodeError(t *testing.T) {
	t.Parallel()
	store := cache.NewMemoryStore()

	err := store.Write(context.Background(), testKey, map[string]any{"fn": func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot encode cache entry "https://example.com/items?a=1&b=2"`)
}
