package otel_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mgapi/go-apiservice/pkg/client"
	"github.com/mgapi/go-apiservice/pkg/client/trace/otel"
	"github.com/mgapi/go-apiservice/pkg/request"
)

type testTelemetry struct {
	spans  *tracetest.InMemoryExporter
	reader *metric.ManualReader
	trace  *trace.TracerProvider
	meter  *metric.MeterProvider
}

func newTestTelemetry() *testTelemetry {
	spans := tracetest.NewInMemoryExporter()
	reader := metric.NewManualReader()
	return &testTelemetry{
		spans:  spans,
		reader: reader,
		trace:  trace.NewTracerProvider(trace.WithSyncer(spans)),
		meter:  metric.NewMeterProvider(metric.WithReader(reader)),
	}
}

func (tt *testTelemetry) spanNames() (out []string) {
	for _, span := range tt.spans.GetSpans() {
		out = append(out, span.Name)
	}
	return out
}

func (tt *testTelemetry) metricNames(t *testing.T) (out []string) {
	t.Helper()
	var data metricdata.ResourceMetrics
	require.NoError(t, tt.reader.Collect(context.Background(), &data))
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			out = append(out, m.Name)
		}
	}
	return out
}

func spanAttr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTrace_Success(t *testing.T) {
	t.Parallel()
	tel := newTestTelemetry()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `=~^https://example.com/items`, func(req *http.Request) (*http.Response, error) {
		// Trace context is propagated
		assert.NotEmpty(t, req.Header.Get("traceparent"))
		return httpmock.NewStringResponse(http.StatusOK, `{"id":1}`), nil
	})

	c := client.New().
		WithTransport(transport).
		AndTrace(otel.NewTrace(
			tel.trace,
			tel.meter,
			otel.WithRedactedQueryParam("token"),
			otel.WithRedactedHeaders("X-Api-Key"),
			otel.WithPropagators(propagation.TraceContext{}),
		))

	reqDef := request.NewHTTPRequest().
		WithGet("https://example.com/items/{id}").
		AndPathParam("id", "1").
		AndParam("token", "secret").
		AndHeader("X-Api-Key", "my-key")
	_, body, err := c.Send(context.Background(), reqDef)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(body))

	// Spans
	assert.Equal(t, []string{"http.request", "apiservice.client.request"}, tel.spanNames())
	spans := tel.spans.GetSpans()
	httpSpan, rootSpan := spans[0], spans[1]
	assert.Equal(t, rootSpan.SpanContext.SpanID(), httpSpan.Parent.SpanID())
	assert.Equal(t, codes.Unset, rootSpan.Status.Code)

	v, found := spanAttr(rootSpan, "definition.header.x-api-key")
	assert.True(t, found)
	assert.Equal(t, "****", v.AsString())
	v, found = spanAttr(httpSpan, "url.full")
	assert.True(t, found)
	assert.Equal(t, "https://example.com/items/1?token=****", v.AsString())
	v, found = spanAttr(rootSpan, "http.response.status_code")
	assert.True(t, found)
	assert.Equal(t, int64(http.StatusOK), v.AsInt64())
	v, found = spanAttr(rootSpan, "http.response.body.size")
	assert.True(t, found)
	assert.Equal(t, int64(8), v.AsInt64())

	// Metrics
	assert.ElementsMatch(t, []string{
		"apiservice.client.request.in_flight",
		"apiservice.client.request.duration",
		"apiservice.http.request.in_flight",
		"apiservice.http.request.duration",
	}, tel.metricNames(t))
}

func TestTrace_Retry(t *testing.T) {
	t.Parallel()
	tel := newTestTelemetry()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, httpmock.ResponderFromMultipleResponses([]*http.Response{
		{StatusCode: http.StatusServiceUnavailable},
		{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(`{"error":"not found"}`))},
	}))

	c := client.New().
		WithTransport(transport).
		WithRetry(client.RetryConfig{
			Condition:     client.TemporaryErrorRetryCondition(),
			Count:         3,
			WaitTimeStart: 1 * time.Millisecond,
			WaitTimeMax:   1 * time.Millisecond,
		}).
		AndTrace(otel.NewTrace(tel.trace, tel.meter))

	res, _, err := c.Send(context.Background(), request.NewHTTPRequest().WithGet("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	assert.Equal(t, []string{"http.request", "http.request", "apiservice.client.request"}, tel.spanNames())
	spans := tel.spans.GetSpans()
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "HTTP status code: 503 Service Unavailable", spans[0].Status.Description)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	rootSpan := spans[2]
	assert.Equal(t, codes.Error, rootSpan.Status.Code)
	require.Len(t, rootSpan.Events, 1)
	assert.Equal(t, "retry", rootSpan.Events[0].Name)
}

func TestTrace_NetworkError(t *testing.T) {
	t.Parallel()
	tel := newTestTelemetry()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(httpmock.NewErrorResponder(errors.New("connection refused")))

	c := client.New().
		WithTransport(transport).
		AndTrace(otel.NewTrace(tel.trace, nil))

	_, _, err := c.Send(context.Background(), request.NewHTTPRequest().WithGet("https://example.com"))
	require.Error(t, err)

	spans := tel.spans.GetSpans()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, codes.Error, span.Status.Code)
	}
	rootSpan := spans[1]
	require.NotEmpty(t, rootSpan.Events)
	assert.Equal(t, "exception", rootSpan.Events[0].Name)
}

func TestTrace_NilProviders(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(http.StatusOK, "OK"))

	c := client.New().WithTransport(transport).AndTrace(otel.NewTrace(nil, nil))
	_, body, err := c.Send(context.Background(), request.NewHTTPRequest().WithGet("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}
