package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Supported bucket URL schemes: azblob://, file://, gs://, mem://, s3://.
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

const blobContentType = "application/json"

// BlobStore keeps entries as objects in a bucket.
// The object key is the SHA-256 hex hash of the cache key, so any URL can be used as a key.
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

// OpenBlob opens the bucket by its URL, for example "s3://my-bucket?region=us-east-1" or "file:///var/cache/api".
func OpenBlob(ctx context.Context, bucketURL string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf(`cannot open cache bucket "%s": %w`, bucketURL, err)
	}
	return NewBlobStore(bucket), nil
}

// NewBlobStore wraps an open bucket. The bucket is closed by the BlobStore.Close method.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// WithPrefix returns a clone of the BlobStore storing objects under the prefix.
func (s *BlobStore) WithPrefix(prefix string) *BlobStore {
	clone := *s
	clone.prefix = prefix
	return &clone
}

// ObjectKey returns key of the object storing the cache entry.
func (s *BlobStore) ObjectKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return s.prefix + hex.EncodeToString(hash[:]) + ".json"
}

func (s *BlobStore) Read(ctx context.Context, key string) (any, error) {
	data, err := s.bucket.ReadAll(ctx, s.ObjectKey(key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf(`cannot read cache entry "%s": %w`, key, err)
	}
	return decode(key, data)
}

func (s *BlobStore) Write(ctx context.Context, key string, value any) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	if err := s.bucket.WriteAll(ctx, s.ObjectKey(key), data, &blob.WriterOptions{ContentType: blobContentType}); err != nil {
		return fmt.Errorf(`cannot write cache entry "%s": %w`, key, err)
	}
	return nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
