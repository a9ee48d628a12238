package trace_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"

	"github.com/mgapi/go-apiservice/pkg/client"
	"github.com/mgapi/go-apiservice/pkg/client/trace"
	"github.com/mgapi/go-apiservice/pkg/request"
)

func TestDumpTracer(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/api/items`, httpmock.ResponderFromMultipleResponses([]*http.Response{
		{StatusCode: http.StatusServiceUnavailable},
		{StatusCode: http.StatusBadGateway},
		{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"id":1}`))},
	}))

	var logs strings.Builder

	ctx := context.Background()
	c := client.New().
		WithTransport(transport).
		WithRetry(client.TestingRetry()).
		AndTrace(trace.DumpTracer(&logs))

	// Retries are dumped too
	expected := `
>>>>>> HTTP DUMP
GET /api/items HTTP/1.1
Host: example.com
User-Agent: go-apiservice
Accept-Encoding: gzip, br
------
HTTP/0.0 503 Service Unavailable
Content-Length: 0
<<<<<< HTTP DUMP END

>>>>>> HTTP RETRY | ATTEMPT: 1 | DELAY: 1ms |  GET /api/items 503 | ERROR: <nil>

>>>>>> HTTP DUMP
GET /api/items HTTP/1.1
Host: example.com
User-Agent: go-apiservice
Accept-Encoding: gzip, br
------
HTTP/0.0 502 Bad Gateway
Content-Length: 0
<<<<<< HTTP DUMP END

>>>>>> HTTP RETRY | ATTEMPT: 2 | DELAY: 1ms |  GET /api/items 502 | ERROR: <nil>

>>>>>> HTTP DUMP
GET /api/items HTTP/1.1
Host: example.com
User-Agent: go-apiservice
Accept-Encoding: gzip, br
------
HTTP/0.0 200 OK
Content-Length: 0
------
{"id":1}
<<<<<< HTTP DUMP END

>>>>>> HTTP REQUEST PROCESSED |  GET /api/items 200 | BODY: 8 | ERROR: <nil> | HEADERS AT: %s | DONE AT: %s
`

	_, body, err := c.Send(ctx, request.NewHTTPRequest().WithGet("https://example.com/api/items"))
	assert.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(body))
	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), logs.String())
}
