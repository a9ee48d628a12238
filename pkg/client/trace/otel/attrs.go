package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/mgapi/go-apiservice/pkg/request"
)

const (
	maskedAttrValue = "****"
)

type attributes struct {
	config config
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
}

func newAttributes(cfg config, reqDef request.HTTPRequest) *attributes {
	out := &attributes{config: cfg}
	reqURL := reqDef.URL()

	// Definition base
	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", reqDef.Method()),
		attribute.String("definition.kind", reqDef.Kind().String()),
		attribute.String("definition.url.path", mustURLPathUnescape(reqURL.Path)),
		attribute.String("definition.url.host", reqURL.Host),
	}

	// Definition extra
	out.definitionExtra = append(out.definitionExtra,
		attribute.String("definition.url.full", out.redactURL(reqURL)),
		attribute.String("definition.encoding", reqDef.Encoding().String()),
		attribute.Bool("definition.cache", reqDef.UseCache()),
		attribute.Bool("definition.auth", reqDef.Credentials() != nil),
		attribute.Int("definition.parts", len(reqDef.Parts())),
	)
	out.definitionExtra = append(out.definitionExtra, out.headers("definition.header.", reqDef.RequestHeader())...)
	for k, v := range reqDef.PathParams() {
		out.definitionExtra = append(out.definitionExtra, attribute.String("definition.params.path."+k, v))
	}

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(req.Method),
		semconv.ServerAddress(req.URL.Hostname()),
	}
	v.httpRequestExtra = append([]attribute.KeyValue{semconv.URLFull(v.redactURL(req.URL))}, v.headers("http.request.header.", req.Header)...)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	v.httpResponse = nil
	v.httpResponseExtra = nil
	if res != nil {
		v.httpResponse = append(v.httpResponse, semconv.HTTPResponseStatusCode(res.StatusCode))
		v.httpResponseExtra = append(v.httpResponseExtra, attribute.Bool("http.response.redirect", isRedirection(res)))
		v.httpResponseExtra = append(v.httpResponseExtra, v.headers("http.response.header.", res.Header)...)
	}

	// Error
	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponse = append(v.httpResponse,
		attribute.Bool("http.response.is_success", isSuccess(res, err)),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.canceled", errors.Is(err, context.Canceled)),
	)
}

func (v *attributes) headers(prefix string, header http.Header) (out []attribute.KeyValue) {
	for key, values := range header {
		key = strings.ToLower(key)
		value := strings.Join(values, ";")
		if _, found := v.config.redactedHeaders[key]; found {
			value = maskedAttrValue
		}
		out = append(out, attribute.String(prefix+key, value))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

func (v *attributes) redactURL(in *url.URL) string {
	clone := *in
	clone.User = nil
	if len(v.config.redactedQueryParams) > 0 {
		query := clone.Query()
		for key := range query {
			if _, found := v.config.redactedQueryParams[strings.ToLower(key)]; found {
				query.Set(key, maskedAttrValue)
			}
		}
		clone.RawQuery = query.Encode()
	}
	return mustURLPathUnescape(clone.String())
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}
