package apiservice

import (
	"context"

	"go.uber.org/zap"

	"github.com/mgapi/go-apiservice/pkg/mapper"
	"github.com/mgapi/go-apiservice/pkg/request"
)

// Call is an immutable typed API call, the raw JSON is mapped to T.
// Call implements the request.Sendable interface, so it can be used in request.WaitGroup and request.RunGroup.
type Call[T any] struct {
	service    *Service
	request    request.HTTPRequest
	mapFn      func(raw any) (T, error)
	onEmit     []func(ctx context.Context, e Emission[T]) error
	onComplete []func(ctx context.Context, result T, err error) error
}

// Object creates a call mapping the response to a single object.
// The mapping is strict, the call fails if the response is not an object or it cannot be mapped.
func Object[T any](s *Service, req request.HTTPRequest) Call[T] {
	return Call[T]{
		service: s,
		request: req,
		mapFn: func(raw any) (T, error) {
			return mapper.Object[T](s.mapper, raw)
		},
	}
}

// List creates a call mapping the response to a list of objects.
// The mapping is lenient, elements which cannot be mapped are dropped.
// The call fails only if the response is not an array.
func List[T any](s *Service, req request.HTTPRequest) Call[[]T] {
	return Call[[]T]{
		service: s,
		request: req,
		mapFn: func(raw any) ([]T, error) {
			out, err := mapper.List[T](s.mapper, raw)
			if err == nil {
				if items, ok := raw.([]any); ok && len(items) > len(out) {
					s.logger.Debug("api list elements dropped", zap.String("url.full", req.URL().String()), zap.Int("dropped", len(items)-len(out)))
				}
			}
			return out, err
		},
	}
}

// RequestObject is a shortcut for Object(s, req).Stream(ctx).
func RequestObject[T any](ctx context.Context, s *Service, req request.HTTPRequest) *Stream[T] {
	return Object[T](s, req).Stream(ctx)
}

// RequestList is a shortcut for List(s, req).Stream(ctx).
func RequestList[T any](ctx context.Context, s *Service, req request.HTTPRequest) *Stream[[]T] {
	return List[T](s, req).Stream(ctx)
}

// Request returns the request descriptor.
func (c Call[T]) Request() request.HTTPRequest {
	return c.request
}

// WithOnEmit registers callback to be executed for each emitted value.
// If an error is returned, the call is stopped with the error.
func (c Call[T]) WithOnEmit(fn func(ctx context.Context, e Emission[T]) error) Call[T] {
	c.onEmit = append(c.onEmit[:len(c.onEmit):len(c.onEmit)], fn)
	return c
}

// WithOnComplete registers callback to be executed when the call is completed.
// The error returned from the callback replaces the original error.
func (c Call[T]) WithOnComplete(fn func(ctx context.Context, result T, err error) error) Call[T] {
	c.onComplete = append(c.onComplete[:len(c.onComplete):len(c.onComplete)], fn)
	return c
}

// Stream starts the call, the OnEmit and OnComplete callbacks are not used.
func (c Call[T]) Stream(ctx context.Context) *Stream[T] {
	return fetch(ctx, c.service, c.request, c.mapFn)
}

// Send waits for all values and returns the last one, for example the live value which followed the cached one.
func (c Call[T]) Send(ctx context.Context) (result T, err error) {
	stream := c.Stream(ctx)
	defer stream.Close()

	found := false
	for {
		e, ok := stream.Next()
		if !ok {
			err = stream.Err()
			break
		}
		if err = c.emitted(ctx, e); err != nil {
			break
		}
		result, found = e.Value, true
	}

	if err == nil && !found {
		err = ErrEmptyStream
	}
	if err != nil {
		var empty T
		result = empty
	}

	for _, fn := range c.onComplete {
		err = fn(ctx, result, err)
	}
	return result, err
}

// SendOrErr sends the call and returns only the error.
func (c Call[T]) SendOrErr(ctx context.Context) error {
	_, err := c.Send(ctx)
	return err
}

func (c Call[T]) emitted(ctx context.Context, e Emission[T]) error {
	for _, fn := range c.onEmit {
		if err := fn(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
