package cache_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgapi/go-apiservice/pkg/cache"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := cache.Open(ctx, cache.Config{})
	require.NoError(t, err)
	assert.IsType(t, cache.NopStore{}, store)

	store, err = cache.Open(ctx, cache.Config{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, cache.NopStore{}, store)

	store, err = cache.Open(ctx, cache.Config{Driver: "Memory"})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, store)

	store, err = cache.Open(ctx, cache.Config{Driver: "bbolt", Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	assert.IsType(t, &cache.BoltStore{}, store)
	require.NoError(t, store.Close())

	store, err = cache.Open(ctx, cache.Config{Driver: "blob", BucketURL: "mem://"})
	require.NoError(t, err)
	assert.IsType(t, &cache.BlobStore{}, store)
	require.NoError(t, store.Close())
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := cache.Open(ctx, cache.Config{Driver: "bbolt"})
	require.Error(t, err)
	assert.Equal(t, `cache driver "bbolt" requires a path`, err.Error())

	_, err = cache.Open(ctx, cache.Config{Driver: "blob"})
	require.Error(t, err)
	assert.Equal(t, `cache driver "blob" requires a bucket url`, err.Error())

	_, err = cache.Open(ctx, cache.Config{Driver: "redis"})
	require.Error(t, err)
	assert.Equal(t, `unsupported cache driver "redis"`, err.Error())
}
