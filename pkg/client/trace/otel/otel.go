// Package otel provides OpenTelemetry tracing and metrics for HTTP client requests.
//
// The package provides 2 levels of telemetry:
//
// 1. High-level telemetry:
//   - Span "apiservice.client.request" wraps all redirects and retries of one logical request,
//     including reading of the response body.
//   - Metrics names start with "apiservice.client." (clientMeterPrefix const).
//
// 2. Low-level telemetry:
//   - Span "http.request" for every sent HTTP request, including redirects and retries.
//   - Child spans "http.dns", "http.getconn" and "http.tls" from the httptrace hooks.
//   - Metrics names start with "apiservice.http." (httpMeterPrefix const).
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mgapi/go-apiservice/pkg/client/trace"
	"github.com/mgapi/go-apiservice/pkg/request"
)

const (
	traceAppName     = "github.com/mgapi/go-apiservice"
	attrResourceName = attribute.Key("resource.name")
	// Low-level tracing, for each redirect and retry.
	httpSpanPrefix           = "http."
	httpRequestSpanName      = httpSpanPrefix + "request"
	httpDNSSpanName          = httpSpanPrefix + "dns"
	httpGetConnSpanName      = httpSpanPrefix + "getconn"
	httpTLSHandshakeSpanName = httpSpanPrefix + "tls"
	attrConnectionReused     = attribute.Key("http.conn.reused")
	attrConnectionWasIdle    = attribute.Key("http.conn.wasidle")
	// High-level tracing.
	clientRequestSpanName = "apiservice.client.request"
	retryEventName        = "retry"
	attrBodySize          = attribute.Key("http.response.body.size")
)

// NewTrace creates a trace.Factory reporting spans to the tracerProvider and metrics to the meterProvider.
// A nil provider is replaced by a noop implementation.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func(rootCtx context.Context, reqDef request.HTTPRequest) (context.Context, *trace.ClientTrace) {
		tc := &trace.ClientTrace{}
		attrs := newAttributes(cfg, reqDef)

		// Create root span and metrics, it may contain multiple HTTP requests (redirects, retries, ...).
		var rootSpan otelTrace.Span
		startTime := time.Now()
		meters.client.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.definition...))
		rootCtx, rootSpan = tracer.Start(
			rootCtx,
			clientRequestSpanName,
			otelTrace.WithSpanKind(otelTrace.SpanKindClient),
			otelTrace.WithAttributes(attrResourceName.String(mustURLPathUnescape(reqDef.URL().Path))),
			otelTrace.WithAttributes(attrs.definition...),
			otelTrace.WithAttributes(attrs.definitionExtra...),
		)
		tc.RequestProcessed = func(res *http.Response, body []byte, err error) {
			elapsedTime := float64(time.Since(startTime)) / float64(time.Millisecond)
			attrs.SetFromResponse(res, err)

			// Metrics
			meterAttrs := append(append([]attribute.KeyValue(nil), attrs.definition...), attrs.httpResponse...)
			meters.client.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.definition...)) // same attributes/dimensions as above (+1)!
			meters.client.duration.Record(rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))

			// Tracing
			rootSpan.SetAttributes(attrs.httpResponse...)
			rootSpan.SetAttributes(attrs.httpResponseExtra...)
			rootSpan.SetAttributes(attrBodySize.Int(len(body)))
			switch {
			case err != nil:
				rootSpan.RecordError(err)
				rootSpan.SetStatus(codes.Error, err.Error())
			case !isSuccess(res, err):
				rootSpan.SetStatus(codes.Error, httpStatusError(res).Error())
			}
			rootSpan.End()
		}

		// Handle HTTP requests
		httpCtx := rootCtx
		var httpRequestSpan otelTrace.Span
		var httpRequestStart time.Time
		tc.HTTPRequestStart = func(req *http.Request) {
			// Create HTTP request span
			httpCtx, httpRequestSpan = tracer.Start(
				rootCtx,
				httpRequestSpanName,
				otelTrace.WithSpanKind(otelTrace.SpanKindClient),
			)

			// Inject trace headers
			if cfg.propagators != nil {
				cfg.propagators.Inject(httpCtx, propagation.HeaderCarrier(req.Header))
			}

			// Attrs
			httpRequestStart = time.Now()
			attrs.SetFromRequest(req)
			httpRequestSpan.SetAttributes(attrResourceName.String(mustURLPathUnescape(req.URL.Path)))
			httpRequestSpan.SetAttributes(attrs.httpRequest...)
			httpRequestSpan.SetAttributes(attrs.httpRequestExtra...)

			// Metrics
			meters.http.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.httpRequest...))
		}
		tc.HTTPRequestDone = func(res *http.Response, err error) {
			elapsedTime := float64(time.Since(httpRequestStart)) / float64(time.Millisecond)
			attrs.SetFromResponse(res, err)

			// Metrics
			meters.http.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.httpRequest...)) // same attributes/dimensions as in HTTPRequestStart!
			meters.http.duration.Record(
				rootCtx,
				elapsedTime,
				otelMetric.WithAttributes(attrs.httpRequest...),
				otelMetric.WithAttributes(attrs.httpResponse...),
			)

			// Tracing
			if httpRequestSpan == nil {
				return
			}
			httpRequestSpan.SetAttributes(attrs.httpResponse...)
			httpRequestSpan.SetAttributes(attrs.httpResponseExtra...)
			switch {
			case err != nil:
				httpRequestSpan.RecordError(err)
				httpRequestSpan.SetStatus(codes.Error, err.Error())
			case res != nil && res.StatusCode >= http.StatusBadRequest:
				httpErr := httpStatusError(res)
				httpRequestSpan.RecordError(httpErr)
				httpRequestSpan.SetStatus(codes.Error, httpErr.Error())
			}
			httpRequestSpan.End()
			httpRequestSpan = nil
			httpCtx = rootCtx
		}

		// Handle retry
		tc.HTTPRequestRetry = func(attempt int, delay time.Duration) {
			rootSpan.AddEvent(retryEventName, otelTrace.WithAttributes(
				attribute.Int("api.request.retry.attempt", attempt),
				attribute.Int64("api.request.retry.delay_ms", delay.Milliseconds()),
			))
		}

		// Register low-level tracing.
		// httptrace: DNS
		{
			var dnsSpan otelTrace.Span
			tc.DNSStart = func(info httptrace.DNSStartInfo) {
				_, dnsSpan = tracer.Start(httpCtx, httpDNSSpanName, otelTrace.WithSpanKind(otelTrace.SpanKindClient))
			}
			tc.DNSDone = func(info httptrace.DNSDoneInfo) {
				if dnsSpan != nil {
					if info.Err != nil {
						dnsSpan.RecordError(info.Err)
						dnsSpan.SetStatus(codes.Error, info.Err.Error())
					}
					dnsSpan.End()
					dnsSpan = nil
				}
			}
		}
		// httptrace: Get connection
		{
			var getConnSpan otelTrace.Span
			tc.GetConn = func(host string) {
				_, getConnSpan = tracer.Start(httpCtx, httpGetConnSpanName, otelTrace.WithSpanKind(otelTrace.SpanKindClient))
			}
			tc.GotConn = func(info httptrace.GotConnInfo) {
				if getConnSpan != nil {
					getConnSpan.SetAttributes(
						attrConnectionReused.Bool(info.Reused),
						attrConnectionWasIdle.Bool(info.WasIdle),
					)
					getConnSpan.End()
					getConnSpan = nil
				}
			}
		}
		// httptrace: TLS handshake
		{
			var tlsSpan otelTrace.Span
			tc.TLSHandshakeStart = func() {
				_, tlsSpan = tracer.Start(httpCtx, httpTLSHandshakeSpanName, otelTrace.WithSpanKind(otelTrace.SpanKindClient))
			}
			tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
				if tlsSpan != nil {
					if err != nil {
						tlsSpan.RecordError(err)
						tlsSpan.SetStatus(codes.Error, err.Error())
					}
					tlsSpan.End()
					tlsSpan = nil
				}
			}
		}

		return rootCtx, tc
	}
}

func httpStatusError(res *http.Response) error {
	if res == nil {
		return fmt.Errorf("no HTTP response")
	}
	return fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
}
