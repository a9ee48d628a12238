package apiservice

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mgapi/go-apiservice/pkg/activity"
	"github.com/mgapi/go-apiservice/pkg/cache"
	"github.com/mgapi/go-apiservice/pkg/mapper"
	"github.com/mgapi/go-apiservice/pkg/request"
)

const DefaultCacheWriteTimeout = 10 * time.Second

// CacheMode defines how the cache is used by requests with the cache flag.
type CacheMode int

const (
	// CacheModeMerge emits the cached value first, followed by the live value, if it differs.
	CacheModeMerge CacheMode = iota
	// CacheModeLiveOnly writes successful responses to the cache, but never reads them.
	CacheModeLiveOnly
)

func (m CacheMode) String() string {
	switch m {
	case CacheModeMerge:
		return "merge"
	case CacheModeLiveOnly:
		return "live-only"
	default:
		return "unknown"
	}
}

// PreprocessFunc derives the request which is actually sent, for example to add a signature.
type PreprocessFunc func(ctx context.Context, req request.HTTPRequest) (request.HTTPRequest, error)

// RecoverFunc is called when a request fails with a classified or transport error.
// It either returns an error, the same or another one, or a stream of raw JSON values replacing the failed result.
type RecoverFunc func(ctx context.Context, err error, req request.HTTPRequest) (*Stream[any], error)

type config struct {
	cache             cache.Store
	cacheMode         CacheMode
	cacheWriteTimeout time.Duration
	mapper            mapper.Mapper
	logger            *zap.Logger
	tracker           *activity.Tracker
	preprocess        PreprocessFunc
	responseError     ResponseErrorFunc
	recover           RecoverFunc
}

type Option func(c *config)

func newConfig(opts []Option) config {
	cfg := config{
		cache:             cache.NopStore{},
		cacheMode:         CacheModeMerge,
		cacheWriteTimeout: DefaultCacheWriteTimeout,
		responseError:     DefaultResponseError,
		recover:           Rethrow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mapper == nil {
		cfg.mapper = mapper.NewJSONMapper()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// WithCache sets the store for requests with the cache flag.
// Without a store, the cache flag has no effect.
func WithCache(store cache.Store) Option {
	return func(c *config) {
		if store == nil {
			store = cache.NopStore{}
		}
		c.cache = store
	}
}

func WithCacheMode(mode CacheMode) Option {
	return func(c *config) {
		c.cacheMode = mode
	}
}

// WithCacheWriteTimeout sets timeout of the background cache write.
func WithCacheWriteTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.cacheWriteTimeout = timeout
	}
}

func WithMapper(m mapper.Mapper) Option {
	return func(c *config) {
		c.mapper = m
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithActivity sets the tracker of in-flight requests, for example to show a network activity indicator.
func WithActivity(tracker *activity.Tracker) Option {
	return func(c *config) {
		c.tracker = tracker
	}
}

func WithPreprocessor(fn PreprocessFunc) Option {
	return func(c *config) {
		c.preprocess = fn
	}
}

// WithResponseErrorFunc sets classification of non-2xx responses.
func WithResponseErrorFunc(fn ResponseErrorFunc) Option {
	return func(c *config) {
		if fn == nil {
			fn = DefaultResponseError
		}
		c.responseError = fn
	}
}

func WithRecoverFunc(fn RecoverFunc) Option {
	return func(c *config) {
		if fn == nil {
			fn = Rethrow
		}
		c.recover = fn
	}
}
