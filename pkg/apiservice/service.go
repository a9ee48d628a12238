// Package apiservice turns request descriptors into streams of typed results.
//
// Each call is one pipeline:
//   - The request is preprocessed, see WithPreprocessor.
//   - The request is sent by the request.Sender, the activity tracker counts the attempt.
//   - The response is classified, see Classify and WithResponseErrorFunc.
//   - A failure is passed to the recovery function, see WithRecoverFunc.
//   - A successful response of a request with the cache flag is written to the cache store in the background,
//     the write starts after the cache read of the same call has finished.
//   - The raw JSON is mapped to the requested model, see Object and List.
//
// A request with the cache flag first emits the cached value, if any, then the live value,
// unless it is structurally equal to the cached one.
package apiservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/mgapi/go-apiservice/pkg/cache"
	"github.com/mgapi/go-apiservice/pkg/mapper"
	"github.com/mgapi/go-apiservice/pkg/request"
)

const logBodyMaxLength = 2000

// Service orchestrates requests, it is safe for concurrent use.
type Service struct {
	config
	sender request.Sender
	writes pendingWrites
}

// New creates a Service sending requests by the sender.
func New(sender request.Sender, opts ...Option) *Service {
	if sender == nil {
		panic(errors.New("sender cannot be nil"))
	}
	s := &Service{config: newConfig(opts), sender: sender}
	s.writes.idle = sync.NewCond(&s.writes.lock)
	return s
}

// Sender returns the underlying transport.
func (s *Service) Sender() request.Sender {
	return s.sender
}

// Mapper returns the mapper used by typed calls.
func (s *Service) Mapper() mapper.Mapper {
	return s.mapper
}

// Request sends the request and emits raw JSON values.
// Emitted values are shared with the background cache write, they must not be modified.
func (s *Service) Request(ctx context.Context, req request.HTTPRequest) *Stream[any] {
	return fetch(ctx, s, req, func(raw any) (any, error) { return raw, nil })
}

// Flush waits until there is no background cache write.
// It can be called concurrently with calls, writes started meanwhile are awaited too.
func (s *Service) Flush() {
	s.writes.wait()
}

// Close waits for background cache writes and closes the cache store.
// The Service must not be used after Close.
func (s *Service) Close() error {
	s.Flush()
	if err := s.cache.Close(); err != nil {
		return fmt.Errorf("cannot close cache: %w", err)
	}
	return nil
}

type cacheResult struct {
	value any
	err   error
}

type liveResult struct {
	value any
	err   error
}

// fetch runs the whole pipeline, raw values are converted to T by the mapFn.
func fetch[T any](ctx context.Context, s *Service, req request.HTTPRequest, mapFn func(raw any) (T, error)) *Stream[T] {
	return newStream(ctx, func(ctx context.Context, emit emitFunc[T]) error {
		// Preprocess
		if s.preprocess != nil {
			preprocessed, err := s.preprocess(ctx, req)
			if err != nil {
				return fmt.Errorf(`cannot preprocess request %s: %w`, req, err)
			}
			req = preprocessed
		}

		method, url := req.Method(), req.URL().String()
		logger := s.logger.With(
			zap.String("http.request.method", method),
			zap.String("url.full", url),
			zap.Stringer("http.request.kind", req.Kind()),
			zap.Bool("cache", req.UseCache()),
		)
		logger.Debug("api request")

		// Cache read, in parallel with the live request
		var cacheCh chan cacheResult
		if req.UseCache() && s.cacheMode == CacheModeMerge {
			cacheCh = make(chan cacheResult, 1)
			go func() {
				value, err := s.cache.Read(ctx, req.CacheKey())
				cacheCh <- cacheResult{value: value, err: err}
			}()
		}

		// Live request
		liveCh := make(chan liveResult, 1)
		go func() {
			value, err := s.live(ctx, logger, req)
			liveCh <- liveResult{value: value, err: err}
		}()

		var last any
		var emitted bool

		// The cached value is always emitted first
		if cacheCh != nil {
			select {
			case <-ctx.Done():
				<-liveCh
				return ctx.Err()
			case r := <-cacheCh:
				switch {
				case errors.Is(r.err, cache.ErrNotFound):
					logger.Debug("api cache miss")
				case r.err != nil:
					logger.Warn("api cache read failed", zap.Error(r.err))
				default:
					if value, err := mapFn(r.value); err != nil {
						logger.Warn("api cached value cannot be mapped", zap.Error(err))
					} else {
						logger.Debug("api cache hit")
						if !emit(Emission[T]{Value: value, Source: SourceCache}) {
							<-liveCh
							return ctx.Err()
						}
						last, emitted = r.value, true
					}
				}
			}
		}

		// The live request always ends, the transport is canceled by the context.
		// The cache read is finished at this point, so the write cannot overtake it.
		r := <-liveCh
		if r.err == nil && req.UseCache() {
			s.writeCache(logger, req.CacheKey(), r.value)
		}
		if ctx.Err() != nil {
			if r.err != nil {
				return r.err
			}
			return ctx.Err()
		}

		// Failure, try to recover
		if r.err != nil {
			recovered, err := s.recover(ctx, r.err, req)
			if err != nil {
				return err
			}
			if recovered == nil {
				return r.err
			}
			logger.Debug("api request recovered", zap.NamedError("cause", r.err))
			return emitRecovered(ctx, recovered, emit, mapFn, method, url, last, emitted)
		}

		// Skip the same value
		if emitted && Equal(last, r.value) {
			logger.Debug("api response is equal to the cached value")
			return nil
		}

		value, err := mapFn(r.value)
		if err != nil {
			return &InvalidResponseError{Method: method, URL: url, err: err}
		}
		if !emit(Emission[T]{Value: value, Source: SourceNetwork}) {
			return ctx.Err()
		}
		return nil
	})
}

func emitRecovered[T any](ctx context.Context, recovered *Stream[any], emit emitFunc[T], mapFn func(raw any) (T, error), method, url string, last any, emitted bool) error {
	defer recovered.Close()
	for {
		e, ok := recovered.Next()
		if !ok {
			return recovered.Err()
		}
		if emitted && Equal(last, e.Value) {
			continue
		}
		value, err := mapFn(e.Value)
		if err != nil {
			return &InvalidResponseError{Method: method, URL: url, err: err}
		}
		if !emit(Emission[T]{Value: value, Source: SourceRecovery}) {
			return ctx.Err()
		}
		last, emitted = e.Value, true
	}
}

// live sends the request and classifies the response.
func (s *Service) live(ctx context.Context, logger *zap.Logger, req request.HTTPRequest) (any, error) {
	res, body, err := s.send(ctx, req)
	if err != nil {
		logger.Warn("api request failed", zap.Error(err))
		return nil, &TransportError{Method: req.Method(), URL: req.URL().String(), err: err}
	}

	value, err := Classify(res.StatusCode, body, s.responseError)
	logger = logger.With(zap.Int("http.response.status_code", res.StatusCode))
	if err != nil {
		logger.Warn("api response error", zap.Error(err), logBody(body))
		return nil, err
	}
	logger.Debug("api response", logBody(body))
	return value, nil
}

func (s *Service) send(ctx context.Context, req request.HTTPRequest) (*http.Response, []byte, error) {
	if s.tracker != nil {
		end := s.tracker.Begin()
		defer end()
	}
	return s.sender.Send(ctx, req)
}

// writeCache stores the value in the background, the caller does not wait.
func (s *Service) writeCache(logger *zap.Logger, key string, value any) {
	s.writes.add()
	go func() {
		defer s.writes.done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cacheWriteTimeout)
		defer cancel()
		if err := s.cache.Write(ctx, key, value); err != nil {
			logger.Warn("api cache write failed", zap.Error(err))
		}
	}()
}

// pendingWrites counts background cache writes.
type pendingWrites struct {
	lock  sync.Mutex
	idle  *sync.Cond
	count int
}

func (w *pendingWrites) add() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.count++
}

func (w *pendingWrites) done() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.count--
	if w.count == 0 {
		w.idle.Broadcast()
	}
}

func (w *pendingWrites) wait() {
	w.lock.Lock()
	defer w.lock.Unlock()
	for w.count > 0 {
		w.idle.Wait()
	}
}

// Equal reports whether two raw JSON values are structurally equal.
// Only objects and arrays are compared, scalar values are never equal.
func Equal(a, b any) bool {
	switch a.(type) {
	case map[string]any, []any:
		return reflect.DeepEqual(a, b)
	default:
		return false
	}
}

func logBody(body []byte) zap.Field {
	if len(body) > logBodyMaxLength {
		return zap.ByteString("http.response.body", body[:logBodyMaxLength])
	}
	return zap.ByteString("http.response.body", body)
}
