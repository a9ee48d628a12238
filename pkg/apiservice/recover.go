package apiservice

import (
	"context"

	"github.com/mgapi/go-apiservice/pkg/request"
)

// Rethrow is the default RecoverFunc, the error is returned without change.
func Rethrow(_ context.Context, err error, _ request.HTTPRequest) (*Stream[any], error) {
	return nil, err
}

// Fallback returns a RecoverFunc replacing any error by the raw JSON value.
func Fallback(value any) RecoverFunc {
	return func(ctx context.Context, _ error, _ request.HTTPRequest) (*Stream[any], error) {
		return Values(ctx, SourceRecovery, value), nil
	}
}

// RecoverIf returns a RecoverFunc which calls the fn only if the condition is met, otherwise the error is returned.
func RecoverIf(condition func(err error) bool, fn RecoverFunc) RecoverFunc {
	return func(ctx context.Context, err error, req request.HTTPRequest) (*Stream[any], error) {
		if !condition(err) {
			return nil, err
		}
		return fn(ctx, err, req)
	}
}
