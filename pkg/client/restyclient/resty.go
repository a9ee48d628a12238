// Package restyclient provides an implementation of the request.Sender interface based on the go-resty library.
package restyclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/mgapi/go-apiservice/pkg/client"
	"github.com/mgapi/go-apiservice/pkg/request"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sender sends requests by a resty client.
// Parameters and parts are encoded in the same way as by the client.Client,
// only text fields of an upload are not sorted.
type Sender struct {
	client *resty.Client
}

// New wraps the resty client, its JSON marshaler and default User-Agent are replaced.
func New(c *resty.Client) Sender {
	if c == nil {
		panic(fmt.Errorf("resty client cannot be nil"))
	}
	c.SetJSONMarshaler(json.Marshal)
	c.SetHeader("User-Agent", client.UserAgent)
	return Sender{client: c}
}

// Client returns the underlying resty client.
func (s Sender) Client() *resty.Client {
	return s.client
}

// Send implements the request.Sender interface.
func (s Sender) Send(ctx context.Context, reqDef request.HTTPRequest) (*http.Response, []byte, error) {
	method := reqDef.Method()
	reqURL := reqDef.URL().String()

	r := s.client.R().SetContext(ctx)

	// Body or query
	switch reqDef.Kind() {
	case request.KindUpload:
		r.SetFormDataFromValues(reqDef.EncodedParams())
		for _, part := range reqDef.Parts() {
			r.SetMultipartField(part.Name, part.FileName, part.ContentType(), bytes.NewReader(part.Data))
		}
	case request.KindPlain:
		if len(reqDef.Params()) > 0 {
			switch {
			case !reqDef.Encoding().InBody(method):
				r.SetQueryParamsFromValues(reqDef.EncodedParams())
			case reqDef.Encoding() == request.EncodingJSON:
				r.SetHeader("Content-Type", reqDef.Encoding().ContentType())
				r.SetBody(reqDef.Params())
			default:
				r.SetFormDataFromValues(reqDef.EncodedParams())
			}
		}
	default:
		return nil, nil, fmt.Errorf(`unexpected request kind "%s"`, reqDef.Kind())
	}

	// Request headers
	for k, values := range reqDef.RequestHeader() {
		r.Header.Del(k)
		for _, v := range values {
			r.Header.Add(k, v)
		}
	}

	// Basic authentication
	if credentials := reqDef.Credentials(); credentials != nil {
		r.SetBasicAuth(credentials.User, credentials.Password)
	}

	// Resty does not check the context before the transport is called
	if err := ctx.Err(); err != nil {
		return nil, nil, client.NewSendError(method, reqURL, err)
	}

	res, err := r.Execute(method, reqURL)
	if err != nil {
		return nil, nil, client.NewSendError(method, reqURL, err)
	}
	return res.RawResponse, res.Body(), nil
}
