package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/mgapi/go-apiservice/pkg/cache"
)

func TestBlobStore_Memory(t *testing.T) {
	t.Parallel()
	store := cache.NewBlobStore(memblob.OpenBucket(nil))
	defer func() { assert.NoError(t, store.Close()) }()
	assertStore(t, store)
}

func TestBlobStore_ObjectKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	store := cache.NewBlobStore(bucket).WithPrefix("responses/")
	defer func() { assert.NoError(t, store.Close()) }()

	key := store.ObjectKey(testKey)
	assert.Regexp(t, `^responses/[0-9a-f]{64}\.json$`, key)
	assert.Equal(t, key, store.ObjectKey(testKey))
	assert.NotEqual(t, key, store.ObjectKey(testKey+"&c=3"))

	require.NoError(t, store.Write(ctx, testKey, testValue()))
	exists, err := bucket.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	attrs, err := bucket.Attributes(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "application/json", attrs.ContentType)
}

func TestBlobStore_CorruptedEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	store := cache.NewBlobStore(bucket)
	defer func() { assert.NoError(t, store.Close()) }()

	require.NoError(t, bucket.WriteAll(ctx, store.ObjectKey(testKey), []byte("{invalid"), nil))

	_, err := store.Read(ctx, testKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrNotFound)
	assert.Contains(t, err.Error(), "cannot decode cache entry")
}

func TestOpenBlob_File(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := cache.OpenBlob(ctx, "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	defer func() { assert.NoError(t, store.Close()) }()

	require.NoError(t, store.Write(ctx, testKey, testValue()))
	_, err = os.Stat(filepath.Join(dir, store.ObjectKey(testKey)))
	assert.NoError(t, err)

	value, err := store.Read(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, testValue(), value)
}

func TestOpenBlob_InvalidURL(t *testing.T) {
	t.Parallel()
	_, err := cache.OpenBlob(context.Background(), "unknown://bucket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot open cache bucket "unknown://bucket"`)
}
