package cache

import (
	"context"
	"fmt"
	"strings"
)

const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverBolt   = "bbolt"
	DriverBlob   = "blob"
)

// Config selects and configures a Store implementation.
type Config struct {
	// Driver is one of: none, memory, bbolt, blob. Empty value means none.
	Driver string `mapstructure:"driver"`
	// Path to the BoltDB file, required by the bbolt driver.
	Path string `mapstructure:"path"`
	// BucketURL, required by the blob driver.
	BucketURL string `mapstructure:"bucket_url"`
}

// Open creates the configured Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return NopStore{}, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverBolt:
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf(`cache driver "%s" requires a path`, DriverBolt)
		}
		return OpenBolt(cfg.Path)
	case DriverBlob:
		if strings.TrimSpace(cfg.BucketURL) == "" {
			return nil, fmt.Errorf(`cache driver "%s" requires a bucket url`, DriverBlob)
		}
		return OpenBlob(ctx, cfg.BucketURL)
	default:
		return nil, fmt.Errorf(`unsupported cache driver "%s"`, cfg.Driver)
	}
}
