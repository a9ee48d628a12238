// Package cache provides stores for raw JSON responses.
//
// Entries are keyed by request.HTTPRequest.CacheKey, a canonical URL string.
// A value is a raw JSON value: map[string]any, []any, string, float64, bool or nil.
// Stores are safe for concurrent use, there is no locking across keys, the last writer wins.
package cache

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by Store.Read if there is no entry for the key.
var ErrNotFound = errors.New("cache entry not found")

// Store is a keyed store of raw JSON values.
type Store interface {
	// Read returns the stored value, ErrNotFound on miss, or a decoding error if the entry is corrupted.
	Read(ctx context.Context, key string) (any, error)
	// Write stores the value, an existing entry is replaced.
	Write(ctx context.Context, key string, value any) error
	Close() error
}

// NopStore never stores anything, each read is a miss.
type NopStore struct{}

func (NopStore) Read(_ context.Context, key string) (any, error) { return nil, notFound(key) }
func (NopStore) Write(context.Context, string, any) error        { return nil }
func (NopStore) Close() error                                    { return nil }

func encode(key string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf(`cannot encode cache entry "%s": %w`, key, err)
	}
	return data, nil
}

func decode(key string, data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf(`cannot decode cache entry "%s": %w`, key, err)
	}
	return value, nil
}

func notFound(key string) error {
	return fmt.Errorf(`%w: "%s"`, ErrNotFound, key)
}
