package apiservice

import (
	"context"
	"fmt"
)

// Source of an emitted value.
type Source int

const (
	SourceCache Source = iota
	SourceNetwork
	SourceRecovery
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceNetwork:
		return "network"
	case SourceRecovery:
		return "recovery"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Emission is one value emitted by a Stream.
type Emission[T any] struct {
	Value  T
	Source Source
}

// Stream is a sequence of results of one call, for example a cached value followed by a fresh one.
// Values are produced in the background, the stream must be consumed to the end or closed.
type Stream[T any] struct {
	values chan Emission[T]
	cancel context.CancelFunc
	err    error
}

// emitFunc sends the value to the consumer, false is returned if the stream has been canceled.
type emitFunc[T any] func(Emission[T]) bool

func newStream[T any](ctx context.Context, produce func(ctx context.Context, emit emitFunc[T]) error) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{values: make(chan Emission[T]), cancel: cancel}
	go func() {
		defer cancel()
		defer close(s.values)
		s.err = produce(ctx, func(e Emission[T]) bool {
			select {
			case s.values <- e:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return s
}

// Values returns a completed stream with the values.
func Values[T any](ctx context.Context, source Source, values ...T) *Stream[T] {
	return newStream(ctx, func(ctx context.Context, emit emitFunc[T]) error {
		for _, v := range values {
			if !emit(Emission[T]{Value: v, Source: source}) {
				return ctx.Err()
			}
		}
		return nil
	})
}

// Failed returns a stream which fails with the error, without any value.
func Failed[T any](err error) *Stream[T] {
	return newStream(context.Background(), func(context.Context, emitFunc[T]) error {
		return err
	})
}

// Next blocks until the next value is available.
// False is returned when the stream is completed, then check the Err method.
func (s *Stream[T]) Next() (Emission[T], bool) {
	e, ok := <-s.values
	return e, ok
}

// Err returns the error which completed the stream.
// It must be called after Next returned false.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close cancels the stream and waits for its completion.
func (s *Stream[T]) Close() {
	s.cancel()
	for range s.values { //nolint:revive
		// drain
	}
}

// Collect waits for all values.
// Values emitted before an error are returned together with the error.
func (s *Stream[T]) Collect() (out []Emission[T], err error) {
	for {
		e, ok := s.Next()
		if !ok {
			return out, s.Err()
		}
		out = append(out, e)
	}
}

// Last waits for completion and returns the last value.
// On error, the zero value is returned, so no partial result is used.
func (s *Stream[T]) Last() (result T, err error) {
	found := false
	for {
		e, ok := s.Next()
		if !ok {
			break
		}
		result, found = e.Value, true
	}

	if err := s.Err(); err != nil {
		var empty T
		return empty, err
	}
	if !found {
		var empty T
		return empty, ErrEmptyStream
	}
	return result, nil
}
