package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mgapi/go-apiservice/pkg/request"
)

// ZapTracer logs request events as structured debug entries, errors are logged with the warn level.
// Request and response bodies are never logged.
func ZapTracer(logger *zap.Logger) Factory {
	var idGenerator atomic.Uint64
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *ClientTrace) {
		requestID := idGenerator.Add(1)
		logger := logger.With(
			zap.Uint64("http.request.id", requestID),
			zap.String("http.request.method", reqDef.Method()),
			zap.Stringer("http.request.kind", reqDef.Kind()),
		)

		var startTime, attemptTime time.Time
		t := &ClientTrace{}
		t.HTTPRequestStart = func(r *http.Request) {
			attemptTime = time.Now()
			if startTime.IsZero() {
				startTime = attemptTime
			}
			logger.Debug("http request started", zap.String("url.full", r.URL.Redacted()))
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			fields := []zap.Field{zap.Duration("duration", time.Since(attemptTime))}
			if r != nil {
				fields = append(fields, zap.Int("http.response.status_code", r.StatusCode))
			}
			if err != nil {
				logger.Warn("http request failed", append(fields, zap.Error(err))...)
				return
			}
			logger.Debug("http request done", fields...)
		}
		t.HTTPRequestRetry = func(attempt int, delay time.Duration) {
			logger.Debug("http request retry", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		}
		t.RequestProcessed = func(r *http.Response, body []byte, err error) {
			fields := []zap.Field{zap.Int("http.response.body.size", len(body)), zap.Duration("duration", time.Since(startTime))}
			if r != nil {
				fields = append(fields, zap.Int("http.response.status_code", r.StatusCode))
			}
			if err != nil {
				logger.Warn("request processing failed", append(fields, zap.Error(err))...)
				return
			}
			logger.Debug("request processed", fields...)
		}
		return ctx, t
	}
}
