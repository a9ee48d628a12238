package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	boltBucket      = "responses"
	boltOpenTimeout = time.Second
)

// BoltStore keeps entries in a BoltDB file, in the "responses" bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the BoltDB file, the parent directory is created if it does not exist.
func OpenBolt(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf(`cannot create cache directory "%s": %w`, dir, err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf(`cannot open cache "%s": %w`, path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf(`cannot init cache bucket: %w`, err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Read(ctx context.Context, key string) (value any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return fmt.Errorf(`cache bucket "%s" is missing`, boltBucket)
		}

		// The data is valid only during the transaction
		data := bucket.Get([]byte(key))
		if data == nil {
			return notFound(key)
		}

		value, err = decode(key, data)
		return err
	})
	return value, err
}

func (s *BoltStore) Write(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(key, value)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return fmt.Errorf(`cache bucket "%s" is missing`, boltBucket)
		}
		return bucket.Put([]byte(key), data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
